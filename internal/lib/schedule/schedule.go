// Package schedule содержит календарную арифметику для дневных планов:
// раскладку тренировок по выбранным дням недели и работу с периодами заморозки.
// Все даты нормализуются к полуночи UTC.
package schedule

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// DateLayout формат дат в запросах и ответах.
const DateLayout = "2006-01-02"

// Day возвращает полночь UTC того же календарного дня.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate разбирает дату в формате 2006-01-02.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FreezeEnd последний день заморозки длиной days, начиная со start.
func FreezeEnd(start time.Time, days int) time.Time {
	return Day(start).AddDate(0, 0, days-1)
}

// Overlaps сообщает, пересекаются ли включительные периоды [aStart, aEnd] и [bStart, bEnd].
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !Day(aEnd).Before(Day(bStart)) && !Day(bEnd).Before(Day(aStart))
}

// Params параметры раскладки плана.
type Params struct {
	From           time.Time       // первый день плана
	Days           models.Weekdays // дни недели с тренировками
	Slots          int             // сколько тренировок разложить
	FirstSlot      int             // номер первой тренировки в общей последовательности (с нуля)
	FirstDayNumber int             // порядковый номер первого дня плана (с единицы)
	Workouts       []int64         // тренировки курса по порядку
	Meals          []int64         // планы питания курса по порядку
}

// Generate раскладывает Slots тренировок по календарю начиная с From.
// Каждая дата становится днём плана; в выбранные дни недели назначается следующая
// тренировка по кругу, остальные дни отводятся на отдых. Раскладка заканчивается днём
// с последней тренировкой. План питания выбирается по номеру дня по кругу.
func Generate(p Params) []models.PlanDay {
	if p.Slots <= 0 || p.Days == 0 {
		return nil
	}
	num := p.FirstDayNumber
	if num < 1 {
		num = 1
	}

	days := make([]models.PlanDay, 0, p.Slots*7/p.Days.Count()+7)
	day := Day(p.From)
	for placed := 0; placed < p.Slots; {
		pd := models.PlanDay{Date: day, DayNumber: num}
		if p.Days.Has(day.Weekday()) {
			pd.IsWorkoutDay = true
			if len(p.Workouts) > 0 {
				id := p.Workouts[(p.FirstSlot+placed)%len(p.Workouts)]
				pd.WorkoutID = &id
			}
			placed++
		}
		if len(p.Meals) > 0 {
			id := p.Meals[(num-1)%len(p.Meals)]
			pd.MealPlanID = &id
		}
		days = append(days, pd)
		day = day.AddDate(0, 0, 1)
		num++
	}
	return days
}
