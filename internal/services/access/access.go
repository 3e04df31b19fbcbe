// Package services управляет доступами пользователей к курсам и заморозками доступа.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// AccessRepository хранилище доступов, заморозок и связанных сущностей.
type AccessRepository interface {
	GetGrant(ctx context.Context, id int64, at time.Time) (*models.AccessGrant, error)
	FindGrant(ctx context.Context, userUID string, courseID int64, at time.Time) (*models.AccessGrant, error)
	ListGrantsByUser(ctx context.Context, userUID string, at time.Time) ([]models.AccessGrant, error)
	UpsertGrant(ctx context.Context, userUID string, courseID int64, source string, now time.Time, days *int) (*models.AccessGrant, error)
	RevokeGrant(ctx context.Context, id int64, at time.Time) error
	ListFreezes(ctx context.Context, grantID int64) ([]models.Freeze, error)
	ApplyFreeze(ctx context.Context, app models.FreezeApplication) (int64, time.Time, error)

	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	FindActiveEnrollmentByCourse(ctx context.Context, userUID string, courseID int64) (*models.Enrollment, error)
}

// Planner перестраивает план записи после заморозки.
type Planner interface {
	Replan(ctx context.Context, e *models.Enrollment, course *models.Course, cutoff, resume time.Time, days models.Weekdays) (*models.Replan, error)
}

// Notifier публикует уведомления в очередь.
type Notifier interface {
	Publish(ctx context.Context, message any) error
}

// Actor пользователь, выполняющий действие.
type Actor struct {
	UserUID string
	Role    string
}

// IsAdmin сообщает, что действие выполняет администратор.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// AccessService выдаёт, проверяет, отзывает и замораживает доступы к курсам.
type AccessService struct {
	log      *slog.Logger
	repo     AccessRepository
	planner  Planner
	notifier Notifier
	limits   config.Freeze
	now      func() time.Time
}

// NewAccessService создает новый экземпляр AccessService.
func NewAccessService(log *slog.Logger, repo AccessRepository, planner Planner, notifier Notifier, limits config.Freeze) *AccessService {
	return &AccessService{
		log:      log,
		repo:     repo,
		planner:  planner,
		notifier: notifier,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HasAccess сообщает, активен ли сейчас доступ пользователя к курсу.
func (s *AccessService) HasAccess(ctx context.Context, userUID string, courseID int64) (bool, error) {
	const op = "services.AccessService.HasAccess"

	now := s.now()
	g, err := s.repo.FindGrant(ctx, userUID, courseID, now)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return g.StatusAt(now) == models.GrantActive, nil
}

// ListForUser возвращает доступы пользователя с вычисленным статусом.
func (s *AccessService) ListForUser(ctx context.Context, userUID string) ([]models.AccessGrant, error) {
	const op = "services.AccessService.ListForUser"

	now := s.now()
	grants, err := s.repo.ListGrantsByUser(ctx, userUID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range grants {
		grants[i].Status = grants[i].StatusAt(now)
	}
	return grants, nil
}

// Grant выдаёт доступ администратором или продлевает существующий.
func (s *AccessService) Grant(ctx context.Context, req models.GrantRequest) (*models.AccessGrant, error) {
	const op = "services.AccessService.Grant"

	if req.Days != nil && *req.Days < 1 {
		return nil, fmt.Errorf("%w: days must be positive", models.ErrInvalidInput)
	}
	if _, err := s.repo.GetUser(ctx, req.UserUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.GetCourse(ctx, req.CourseID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			err = models.ErrCourseNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	g, err := s.repo.UpsertGrant(ctx, req.UserUID, req.CourseID, models.GrantSourceAdmin, now, req.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.Status = g.StatusAt(now)
	s.log.Info("access granted",
		slog.Int64("grant_id", g.ID),
		slog.String("user_uid", g.UserUID),
		slog.Int64("course_id", g.CourseID))
	return g, nil
}

// Revoke отзывает доступ.
func (s *AccessService) Revoke(ctx context.Context, grantID int64) error {
	const op = "services.AccessService.Revoke"

	if err := s.repo.RevokeGrant(ctx, grantID, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, grantErr(err))
	}
	return nil
}

// ListFreezes возвращает заморозки доступа. Чужой доступ видит только администратор.
func (s *AccessService) ListFreezes(ctx context.Context, actor Actor, grantID int64) ([]models.Freeze, error) {
	const op = "services.AccessService.ListFreezes"

	if _, err := s.ownedGrant(ctx, actor, grantID, s.now()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	freezes, err := s.repo.ListFreezes(ctx, grantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return freezes, nil
}

// freezeAttempts сколько раз Freeze пересчитывает план, если заморозки
// доступа изменились между чтением и записью.
const freezeAttempts = 3

// Freeze приостанавливает доступ на days дней начиная с req.StartDate.
// Срок доступа сдвигается на длину заморозки, а план активной записи на курс
// перестраивается: тренировки переносятся на дни после заморозки.
func (s *AccessService) Freeze(ctx context.Context, actor Actor, grantID int64, req models.FreezeRequest) (*models.Freeze, *models.AccessGrant, error) {
	const op = "services.AccessService.Freeze"

	now := s.now()
	today := schedule.Day(now)

	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", models.ErrInvalidDate, err)
	}
	if req.Days < 1 || req.Days > s.limits.MaxDays {
		return nil, nil, fmt.Errorf("%w: days must be in 1..%d", models.ErrInvalidFreezeLen, s.limits.MaxDays)
	}
	if start.Before(today) {
		return nil, nil, models.ErrFreezeInPast
	}

	for attempt := 1; ; attempt++ {
		freeze, g, course, err := s.freeze(ctx, actor, grantID, start, req.Days, now)
		if errors.Is(err, models.ErrConcurrentUpdate) && attempt < freezeAttempts {
			s.log.Warn("freezes changed concurrently, retrying",
				slog.Int64("grant_id", grantID), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		metrics.Events.WithLabelValues("freeze").Inc()
		s.log.Info("access frozen",
			slog.Int64("grant_id", grantID),
			slog.String("start", start.Format(schedule.DateLayout)),
			slog.Int("days", req.Days))

		s.notifyFreeze(ctx, g, course, *freeze)
		return freeze, g, nil
	}
}

// freeze одна попытка заморозки: проверки по текущему состоянию, пересчёт
// плана и запись. Хранилище повторяет проверку лимитов под блокировкой.
func (s *AccessService) freeze(ctx context.Context, actor Actor, grantID int64, start time.Time, days int, now time.Time) (*models.Freeze, *models.AccessGrant, *models.Course, error) {
	g, err := s.ownedGrant(ctx, actor, grantID, now)
	if err != nil {
		return nil, nil, nil, err
	}
	switch g.StatusAt(now) {
	case models.GrantRevoked:
		return nil, nil, nil, models.ErrGrantRevoked
	case models.GrantExpired:
		return nil, nil, nil, models.ErrNoAccess
	}
	if g.ExpiresAt == nil {
		return nil, nil, nil, models.ErrFreezeUnlimited
	}
	if !start.Before(*g.ExpiresAt) {
		return nil, nil, nil, models.ErrFreezeAfterEnd
	}

	existing, err := s.repo.ListFreezes(ctx, grantID)
	if err != nil {
		return nil, nil, nil, err
	}
	end := schedule.FreezeEnd(start, days)
	total := days
	for _, f := range existing {
		if schedule.Overlaps(start, end, f.StartDate, f.EndDate) {
			return nil, nil, nil, models.ErrFreezeOverlap
		}
		total += f.Days
	}
	if len(existing) >= s.limits.MaxCount || total > s.limits.MaxDays {
		return nil, nil, nil, models.ErrFreezeLimit
	}

	app := models.FreezeApplication{
		Freeze: models.Freeze{
			GrantID:   grantID,
			StartDate: start,
			EndDate:   end,
			Days:      days,
		},
		MaxCount:     s.limits.MaxCount,
		MaxDays:      s.limits.MaxDays,
		KnownFreezes: len(existing),
	}

	course, err := s.repo.GetCourse(ctx, g.CourseID)
	if err != nil {
		return nil, nil, nil, err
	}
	enrollment, err := s.repo.FindActiveEnrollmentByCourse(ctx, g.UserUID, g.CourseID)
	switch {
	case err == nil:
		app.Replan, err = s.planner.Replan(ctx, enrollment, course, start, end.AddDate(0, 0, 1), enrollment.WorkoutDays)
		if err != nil {
			return nil, nil, nil, err
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, nil, nil, err
	}

	id, expiresAt, err := s.repo.ApplyFreeze(ctx, app)
	if err != nil {
		return nil, nil, nil, err
	}
	freeze := app.Freeze
	freeze.ID = id
	freeze.CreatedAt = now
	g.ExpiresAt = &expiresAt
	g.Status = g.StatusAt(now)
	return &freeze, g, course, nil
}

func (s *AccessService) ownedGrant(ctx context.Context, actor Actor, grantID int64, now time.Time) (*models.AccessGrant, error) {
	g, err := s.repo.GetGrant(ctx, grantID, now)
	if err != nil {
		return nil, grantErr(err)
	}
	if g.UserUID != actor.UserUID && !actor.IsAdmin() {
		// чужой доступ неотличим от несуществующего
		return nil, models.ErrGrantNotFound
	}
	return g, nil
}

func (s *AccessService) notifyFreeze(ctx context.Context, g *models.AccessGrant, course *models.Course, f models.Freeze) {
	user, err := s.repo.GetUser(ctx, g.UserUID)
	if err != nil {
		s.log.Error("failed to load user for freeze email", slog.String("user_uid", g.UserUID), sl.Err(err))
		return
	}
	n := models.Notification{
		Kind:     models.NotifyFreeze,
		Email:    user.Email,
		Username: user.Username,
		Data: map[string]string{
			"course":     course.Title,
			"start":      f.StartDate.Format(schedule.DateLayout),
			"end":        f.EndDate.Format(schedule.DateLayout),
			"expires_at": g.ExpiresAt.Format(schedule.DateLayout),
		},
	}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.log.Error("failed to publish notification", slog.String("kind", n.Kind), sl.Err(err))
	}
}

func grantErr(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrGrantNotFound
	}
	return err
}
