// Package services строит и перестраивает дневные планы записи на курс.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// PlanRepository источник содержимого курса и состояния плана.
type PlanRepository interface {
	ListWorkouts(ctx context.Context, courseID int64) ([]models.Workout, error)
	ListMealPlans(ctx context.Context, courseID int64) ([]models.MealPlan, error)
	GetPlanSummary(ctx context.Context, enrollmentID int64, before time.Time) (models.PlanSummary, error)
}

// Planner раскладывает тренировки курса по календарю.
type Planner struct {
	repo PlanRepository
}

// NewPlanner создает Planner.
func NewPlanner(repo PlanRepository) *Planner {
	return &Planner{repo: repo}
}

// Initial план новой записи: все слоты курса начиная со start.
func (p *Planner) Initial(ctx context.Context, course *models.Course, start time.Time, days models.Weekdays) ([]models.PlanDay, error) {
	const op = "services.Planner.Initial"

	workouts, meals, err := p.content(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return schedule.Generate(schedule.Params{
		From:           start,
		Days:           days,
		Slots:          course.TotalWorkouts(),
		FirstDayNumber: 1,
		Workouts:       workouts,
		Meals:          meals,
	}), nil
}

// Replan перестраивает хвост плана.
// Незавершённые дни начиная с cutoff удаляются; граница сдвигается за последний
// выполненный день. Оставшиеся слоты раскладываются с resume по дням days,
// продолжая последовательность тренировок и нумерацию дней. Дни раньше
// e.StartDate не планируются.
func (p *Planner) Replan(ctx context.Context, e *models.Enrollment, course *models.Course, cutoff, resume time.Time, days models.Weekdays) (*models.Replan, error) {
	const op = "services.Planner.Replan"

	cutoff = schedule.Day(cutoff)
	resume = schedule.Day(resume)

	summary, err := p.repo.GetPlanSummary(ctx, e.ID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if summary.LastCompleted != nil && !schedule.Day(*summary.LastCompleted).Before(cutoff) {
		cutoff = schedule.Day(*summary.LastCompleted).AddDate(0, 0, 1)
		summary, err = p.repo.GetPlanSummary(ctx, e.ID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if resume.Before(cutoff) {
		resume = cutoff
	}
	// план не начинается раньше даты старта записи
	if start := schedule.Day(e.StartDate); resume.Before(start) {
		resume = start
	}

	workouts, meals, err := p.content(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Replan{
		EnrollmentID: e.ID,
		From:         cutoff,
		Days: schedule.Generate(schedule.Params{
			From:           resume,
			Days:           days,
			Slots:          course.TotalWorkouts() - summary.WorkoutSlotsUsed,
			FirstSlot:      summary.WorkoutSlotsUsed,
			FirstDayNumber: summary.LastDayNumber + 1,
			Workouts:       workouts,
			Meals:          meals,
		}),
	}, nil
}

func (p *Planner) content(ctx context.Context, courseID int64) ([]int64, []int64, error) {
	workouts, err := p.repo.ListWorkouts(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	meals, err := p.repo.ListMealPlans(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	workoutIDs := make([]int64, 0, len(workouts))
	for _, w := range workouts {
		workoutIDs = append(workoutIDs, w.ID)
	}
	mealIDs := make([]int64, 0, len(meals))
	for _, m := range meals {
		mealIDs = append(mealIDs, m.ID)
	}
	return workoutIDs, mealIDs, nil
}
