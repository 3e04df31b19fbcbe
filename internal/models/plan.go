package models

import "time"

// PlanDay запись дневного плана: календарный день, тренировка и питание.
// WorkoutID == nil на днях отдыха.
type PlanDay struct {
	ID           int64      `json:"id"`
	EnrollmentID int64      `json:"enrollment_id"`
	Date         time.Time  `json:"date"`
	DayNumber    int        `json:"day_number"`
	IsWorkoutDay bool       `json:"is_workout_day"`
	WorkoutID    *int64     `json:"workout_id,omitempty"`
	MealPlanID   *int64     `json:"meal_plan_id,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// PlanDayView день плана вместе с содержимым тренировки и питания.
type PlanDayView struct {
	PlanDay
	Workout  *Workout  `json:"workout,omitempty"`
	MealPlan *MealPlan `json:"meal_plan,omitempty"`
}

// PlanSummary состояние плана до указанной даты.
type PlanSummary struct {
	WorkoutSlotsUsed int
	LastDayNumber    int
	LastCompleted    *time.Time
}

// Replan перестроение плана: дни с датой >= From удаляются и заменяются Days.
// WorkoutDays != nil обновляет выбранные дни записи.
type Replan struct {
	EnrollmentID int64
	From         time.Time
	WorkoutDays  *Weekdays
	Days         []PlanDay
}

// PlanReminder данные для напоминания о тренировке.
type PlanReminder struct {
	Email        string
	Username     string
	CourseTitle  string
	WorkoutTitle string
	Date         time.Time
}
