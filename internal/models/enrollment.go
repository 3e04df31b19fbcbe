package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Статусы записи на курс.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"
)

// Weekdays набор дней недели в виде битовой маски.
// Бит (d-1) соответствует ISO-дню d: 1 понедельник, 7 воскресенье.
type Weekdays uint8

// NewWeekdays строит набор из ISO-номеров дней. Повторы и значения вне 1..7 недопустимы.
func NewWeekdays(days []int) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 1 || d > 7 {
			return 0, fmt.Errorf("%w: day %d out of range", ErrInvalidWorkoutDays, d)
		}
		bit := Weekdays(1) << (d - 1)
		if w&bit != 0 {
			return 0, fmt.Errorf("%w: duplicate day %d", ErrInvalidWorkoutDays, d)
		}
		w |= bit
	}
	return w, nil
}

// Has сообщает, входит ли день недели в набор.
func (w Weekdays) Has(d time.Weekday) bool {
	iso := int(d)
	if iso == 0 {
		iso = 7
	}
	return w&(Weekdays(1)<<(iso-1)) != 0
}

// Count количество выбранных дней.
func (w Weekdays) Count() int {
	n := 0
	for v := w; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// List возвращает ISO-номера дней по возрастанию.
func (w Weekdays) List() []int {
	days := make([]int, 0, 7)
	for d := 1; d <= 7; d++ {
		if w&(Weekdays(1)<<(d-1)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON сериализует набор как список ISO-дней.
func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.List())
}

// UnmarshalJSON разбирает список ISO-дней.
func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	parsed, err := NewWeekdays(days)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Enrollment запись пользователя на курс с выбранными днями тренировок.
type Enrollment struct {
	ID          int64     `json:"id"`
	UserUID     string    `json:"user_uid"`
	CourseID    int64     `json:"course_id"`
	WorkoutDays Weekdays  `json:"workout_days"`
	StartDate   time.Time `json:"start_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// EnrollRequest запрос на запись на курс. StartDate в формате 2006-01-02.
type EnrollRequest struct {
	CourseID    int64  `json:"course_id" validate:"required,gt=0"`
	WorkoutDays []int  `json:"workout_days" validate:"required,min=1,max=7"`
	StartDate   string `json:"start_date" validate:"required"`
}

// RescheduleRequest запрос на смену дней тренировок.
// Пустой FromDate означает «с сегодняшнего дня».
type RescheduleRequest struct {
	WorkoutDays []int  `json:"workout_days" validate:"required,min=1,max=7"`
	FromDate    string `json:"from_date,omitempty"`
}
