// Package services содержит фоновые задачи: напоминания об окончании доступа,
// напоминания о тренировках и завершение пройденных записей.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// Имена задач в логах и метриках.
const (
	JobAccessExpiring     = "access-expiring"
	JobPlanReminder       = "plan-reminder"
	JobEnrollmentComplete = "enrollment-complete"
)

// Repository источник данных для задач планировщика.
type Repository interface {
	FindGrantsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.GrantReminder, error)
	FindWorkoutDaysOn(ctx context.Context, date time.Time) ([]models.PlanReminder, error)
	CompleteFinishedEnrollments(ctx context.Context, today time.Time) (int64, error)
}

// Notifier публикует уведомления в очередь.
type Notifier interface {
	Publish(ctx context.Context, message any) error
}

// SchedulerService выполняет периодические задачи.
type SchedulerService struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, notifier Notifier, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register добавляет задачи в cron по расписаниям из конфига.
// Каждый запуск получает ctx, отменяемый при остановке приложения.
func (s *SchedulerService) Register(ctx context.Context, c *cron.Cron, cfg config.Scheduler) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobAccessExpiring, cfg.AccessExpiringSpec, s.NotifyExpiringAccess},
		{JobPlanReminder, cfg.WorkoutReminderSpec, s.NotifyTodayWorkouts},
		{JobEnrollmentComplete, cfg.EnrollmentCompleteSpec, s.CompleteFinishedEnrollments},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, s.wrap(ctx, j.name, j.run)); err != nil {
			return fmt.Errorf("scheduler: job %s spec %q: %w", j.name, j.spec, err)
		}
		s.log.Info("job registered", slog.String("job", j.name), slog.String("spec", j.spec))
	}
	return nil
}

func (s *SchedulerService) wrap(ctx context.Context, name string, run func(context.Context) error) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		s.log.Info("job started", slog.String("job", name))
		err := run(ctx)
		metrics.RecordJob(name, time.Since(start), err)
		if err != nil {
			s.log.Error("job failed", slog.String("job", name), sl.Err(err))
			return
		}
		s.log.Info("job finished", slog.String("job", name), slog.Duration("took", time.Since(start)))
	}
}

// NotifyExpiringAccess напоминает об окончании доступа, истекающего завтра.
func (s *SchedulerService) NotifyExpiringAccess(ctx context.Context) error {
	const op = "services.SchedulerService.NotifyExpiringAccess"

	tomorrow := schedule.Day(s.now()).AddDate(0, 0, 1)
	reminders, err := s.repo.FindGrantsExpiringBetween(ctx, tomorrow, tomorrow.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(reminders) == 0 {
		s.log.Info("no expiring access found")
		return nil
	}
	s.log.Info("found expiring access", "count", len(reminders))
	for _, r := range reminders {
		s.publish(ctx, models.Notification{
			Kind:     models.NotifyAccessExpiring,
			Email:    r.Email,
			Username: r.Username,
			Data: map[string]string{
				"course":     r.CourseTitle,
				"expires_at": r.ExpiresAt.Format(schedule.DateLayout),
			},
		})
	}
	return nil
}

// NotifyTodayWorkouts напоминает о сегодняшних невыполненных тренировках.
func (s *SchedulerService) NotifyTodayWorkouts(ctx context.Context) error {
	const op = "services.SchedulerService.NotifyTodayWorkouts"

	reminders, err := s.repo.FindWorkoutDaysOn(ctx, schedule.Day(s.now()))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("found workouts for today", "count", len(reminders))
	for _, r := range reminders {
		s.publish(ctx, models.Notification{
			Kind:     models.NotifyWorkoutToday,
			Email:    r.Email,
			Username: r.Username,
			Data: map[string]string{
				"course":  r.CourseTitle,
				"workout": r.WorkoutTitle,
			},
		})
	}
	return nil
}

// CompleteFinishedEnrollments завершает записи, у которых прошли все дни плана.
func (s *SchedulerService) CompleteFinishedEnrollments(ctx context.Context) error {
	const op = "services.SchedulerService.CompleteFinishedEnrollments"

	n, err := s.repo.CompleteFinishedEnrollments(ctx, schedule.Day(s.now()))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("enrollments completed", "count", n)
	}
	return nil
}

func (s *SchedulerService) publish(ctx context.Context, n models.Notification) {
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.log.Error("failed to publish message", slog.String("kind", n.Kind), sl.Err(err))
	}
}
