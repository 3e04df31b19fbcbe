package models

import "time"

// Course описывает фитнес-курс из каталога.
// AccessDays == nil означает бессрочный доступ после покупки.
type Course struct {
	ID              int64     `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PriceCents      int64     `json:"price_cents"`
	Currency        string    `json:"currency"`
	DurationWeeks   int       `json:"duration_weeks"`
	WorkoutsPerWeek int       `json:"workouts_per_week"`
	AccessDays      *int      `json:"access_days,omitempty"`
	CoverKey        string    `json:"-"`
	CoverURL        string    `json:"cover_url,omitempty"`
	IsPublished     bool      `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"`
}

// TotalWorkouts количество тренировочных слотов в программе курса.
func (c *Course) TotalWorkouts() int {
	return c.DurationWeeks * c.WorkoutsPerWeek
}

// CourseInput данные курса из запроса администратора.
type CourseInput struct {
	Slug            string `json:"slug" validate:"required,max=120"`
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents" validate:"gte=0"`
	Currency        string `json:"currency" validate:"required,len=3"`
	DurationWeeks   int    `json:"duration_weeks" validate:"required,gte=1,lte=104"`
	WorkoutsPerWeek int    `json:"workouts_per_week" validate:"required,gte=1,lte=7"`
	AccessDays      *int   `json:"access_days,omitempty" validate:"omitempty,gte=1"`
	IsPublished     bool   `json:"is_published"`
}

// CourseFilter параметры выборки каталога.
type CourseFilter struct {
	Query         string
	OnlyPublished bool
	Limit         int
	Offset        int
}

// Workout тренировка курса. Position задаёт порядок прохождения.
type Workout struct {
	ID              int64  `json:"id"`
	CourseID        int64  `json:"course_id"`
	Position        int    `json:"position"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// WorkoutInput данные тренировки из запроса администратора.
type WorkoutInput struct {
	Position        int    `json:"position" validate:"required,gte=1"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

// MealPlan план питания на день.
type MealPlan struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Calories int    `json:"calories"`
}

// MealPlanInput данные плана питания из запроса администратора.
type MealPlanInput struct {
	Position int    `json:"position" validate:"required,gte=1"`
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Calories int    `json:"calories" validate:"gte=0"`
}
