package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// maxPlanRange наибольший запрашиваемый период плана.
const maxPlanRange = 366

// Today возвращает день плана на сегодня.
func (s *EnrollmentService) Today(ctx context.Context, userUID string) (*models.PlanDayView, error) {
	const op = "services.EnrollmentService.Today"

	e, err := s.Current(ctx, userUID)
	if err != nil {
		return nil, err
	}
	today := schedule.Day(s.now())
	days, err := s.repo.ListPlanDays(ctx, e.ID, today, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(days) == 0 {
		return nil, models.ErrPlanDayNotFound
	}
	return &days[0], nil
}

// ListPlan возвращает дни плана в периоде [from, to].
// Пустой from означает начало записи, пустой to означает четыре недели после from.
func (s *EnrollmentService) ListPlan(ctx context.Context, userUID, fromValue, toValue string) ([]models.PlanDayView, error) {
	const op = "services.EnrollmentService.ListPlan"

	e, err := s.Current(ctx, userUID)
	if err != nil {
		return nil, err
	}

	from := e.StartDate
	if fromValue != "" {
		if from, err = schedule.ParseDate(fromValue); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidDate, err)
		}
	}
	to := from.AddDate(0, 0, 27)
	if toValue != "" {
		if to, err = schedule.ParseDate(toValue); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidDate, err)
		}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", models.ErrInvalidDate)
	}
	if to.Sub(from) > maxPlanRange*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", models.ErrInvalidDate, maxPlanRange)
	}

	days, err := s.repo.ListPlanDays(ctx, e.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return days, nil
}

// CompleteDay отмечает день своего плана выполненным. Будущие дни отмечать нельзя.
// После последней тренировки запись завершается.
func (s *EnrollmentService) CompleteDay(ctx context.Context, userUID string, dayID int64) (*models.PlanDay, error) {
	const op = "services.EnrollmentService.CompleteDay"

	now := s.now()
	d, err := s.repo.GetPlanDayForUser(ctx, userUID, dayID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrPlanDayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if d.Date.After(schedule.Day(now)) {
		return nil, models.ErrPlanDayInFuture
	}
	if d.CompletedAt != nil {
		return d, nil
	}

	d, err = s.repo.CompletePlanDay(ctx, dayID, now)
	if errors.Is(err, models.ErrNotFound) {
		// запись отменили между чтением и отметкой
		return nil, models.ErrPlanDayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.Events.WithLabelValues("plan_day_completed").Inc()
	if d.IsWorkoutDay {
		s.completeIfFinished(ctx, d.EnrollmentID)
	}
	return d, nil
}

func (s *EnrollmentService) completeIfFinished(ctx context.Context, enrollmentID int64) {
	pending, err := s.repo.CountPendingWorkouts(ctx, enrollmentID)
	if err != nil {
		s.log.Error("failed to count pending workouts", slog.Int64("enrollment_id", enrollmentID), sl.Err(err))
		return
	}
	if pending > 0 {
		return
	}
	if err := s.repo.CompleteEnrollment(ctx, enrollmentID); err != nil {
		s.log.Error("failed to complete enrollment", slog.Int64("enrollment_id", enrollmentID), sl.Err(err))
		return
	}
	s.log.Info("enrollment completed", slog.Int64("enrollment_id", enrollmentID))
}
