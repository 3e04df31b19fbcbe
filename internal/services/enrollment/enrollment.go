// Package services реализует запись на курс, выбор дней тренировок и работу с дневным планом.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// EnrollmentRepository хранилище записей и дневных планов.
type EnrollmentRepository interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)

	CreateEnrollment(ctx context.Context, e models.Enrollment, days []models.PlanDay) (int64, error)
	GetActiveEnrollment(ctx context.Context, userUID string) (*models.Enrollment, error)
	ListEnrollmentsByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error)
	ApplyReplan(ctx context.Context, r models.Replan) error
	CancelEnrollment(ctx context.Context, id int64, from time.Time) error
	CompleteEnrollment(ctx context.Context, id int64) error

	ListPlanDays(ctx context.Context, enrollmentID int64, from, to time.Time) ([]models.PlanDayView, error)
	GetPlanDayForUser(ctx context.Context, userUID string, id int64) (*models.PlanDay, error)
	CompletePlanDay(ctx context.Context, id int64, at time.Time) (*models.PlanDay, error)
	CountPendingWorkouts(ctx context.Context, enrollmentID int64) (int, error)
}

// AccessChecker проверяет доступ пользователя к курсу.
type AccessChecker interface {
	HasAccess(ctx context.Context, userUID string, courseID int64) (bool, error)
}

// Planner строит и перестраивает дневные планы.
type Planner interface {
	Initial(ctx context.Context, course *models.Course, start time.Time, days models.Weekdays) ([]models.PlanDay, error)
	Replan(ctx context.Context, e *models.Enrollment, course *models.Course, cutoff, resume time.Time, days models.Weekdays) (*models.Replan, error)
}

// EnrollmentService управляет записью пользователя на курс и его дневным планом.
type EnrollmentService struct {
	log     *slog.Logger
	repo    EnrollmentRepository
	access  AccessChecker
	planner Planner
	now     func() time.Time
}

// NewEnrollmentService создает новый экземпляр EnrollmentService.
func NewEnrollmentService(log *slog.Logger, repo EnrollmentRepository, access AccessChecker, planner Planner) *EnrollmentService {
	return &EnrollmentService{
		log:     log,
		repo:    repo,
		access:  access,
		planner: planner,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enroll записывает пользователя на курс и генерирует план.
func (s *EnrollmentService) Enroll(ctx context.Context, userUID string, req models.EnrollRequest) (*models.Enrollment, error) {
	const op = "services.EnrollmentService.Enroll"

	today := schedule.Day(s.now())
	start, err := parseStart(req.StartDate, today)
	if err != nil {
		return nil, err
	}

	course, err := s.repo.GetCourse(ctx, req.CourseID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	days, err := workoutDays(req.WorkoutDays, course)
	if err != nil {
		return nil, err
	}

	ok, err := s.access.HasAccess(ctx, userUID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, models.ErrNoAccess
	}

	_, err = s.repo.GetActiveEnrollment(ctx, userUID)
	switch {
	case err == nil:
		return nil, models.ErrActiveEnrollmentExists
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err := s.planner.Initial(ctx, course, start, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e := models.Enrollment{
		UserUID:     userUID,
		CourseID:    course.ID,
		WorkoutDays: days,
		StartDate:   start,
		Status:      models.EnrollmentActive,
	}
	id, err := s.repo.CreateEnrollment(ctx, e, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.ID = id
	e.CreatedAt = s.now()

	metrics.Events.WithLabelValues("enroll").Inc()
	s.log.Info("user enrolled",
		slog.Int64("enrollment_id", id),
		slog.Int64("course_id", course.ID),
		slog.Int("plan_days", len(plan)))
	return &e, nil
}

// Current возвращает активную запись пользователя.
func (s *EnrollmentService) Current(ctx context.Context, userUID string) (*models.Enrollment, error) {
	const op = "services.EnrollmentService.Current"

	e, err := s.repo.GetActiveEnrollment(ctx, userUID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// Cancel отменяет активную запись. Невыполненные дни плана начиная с сегодня удаляются.
func (s *EnrollmentService) Cancel(ctx context.Context, userUID string) error {
	const op = "services.EnrollmentService.Cancel"

	e, err := s.Current(ctx, userUID)
	if err != nil {
		return err
	}
	if err := s.repo.CancelEnrollment(ctx, e.ID, schedule.Day(s.now())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("enrollment cancelled", slog.Int64("enrollment_id", e.ID))
	return nil
}

// Reschedule меняет дни тренировок начиная с req.FromDate (по умолчанию с сегодня).
// Прошедшие и выполненные дни сохраняются, остальные тренировки раскладываются заново.
func (s *EnrollmentService) Reschedule(ctx context.Context, userUID string, req models.RescheduleRequest) (*models.Enrollment, error) {
	const op = "services.EnrollmentService.Reschedule"

	today := schedule.Day(s.now())
	from := today
	if req.FromDate != "" {
		var err error
		if from, err = parseStart(req.FromDate, today); err != nil {
			return nil, err
		}
	}

	e, err := s.Current(ctx, userUID)
	if err != nil {
		return nil, err
	}
	course, err := s.repo.GetCourse(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	days, err := workoutDays(req.WorkoutDays, course)
	if err != nil {
		return nil, err
	}

	r, err := s.planner.Replan(ctx, e, course, from, from, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.WorkoutDays = &days
	if err := s.repo.ApplyReplan(ctx, *r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.WorkoutDays = days

	metrics.Events.WithLabelValues("reschedule").Inc()
	s.log.Info("enrollment rescheduled",
		slog.Int64("enrollment_id", e.ID),
		slog.String("from", r.From.Format(schedule.DateLayout)),
		slog.Any("workout_days", days.List()))
	return e, nil
}

// ListByCourse записи на курс для админ-панели.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	const op = "services.EnrollmentService.ListByCourse"

	if _, err := s.repo.GetCourse(ctx, courseID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCourseNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	list, err := s.repo.ListEnrollmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func parseStart(value string, today time.Time) (time.Time, error) {
	d, err := schedule.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", models.ErrInvalidDate, err)
	}
	if d.Before(today) {
		return time.Time{}, models.ErrStartInPast
	}
	return d, nil
}

func workoutDays(list []int, course *models.Course) (models.Weekdays, error) {
	days, err := models.NewWeekdays(list)
	if err != nil {
		return 0, err
	}
	if days.Count() != course.WorkoutsPerWeek {
		return 0, fmt.Errorf("%w: course requires %d days, got %d",
			models.ErrInvalidWorkoutDays, course.WorkoutsPerWeek, days.Count())
	}
	return days, nil
}
