package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const courseColumns = `id, slug, title, description, price_cents, currency, duration_weeks,
	workouts_per_week, access_days, cover_key, is_published, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(r rowScanner) (*models.Course, error) {
	c := &models.Course{}
	var accessDays sql.NullInt32
	if err := r.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.PriceCents, &c.Currency,
		&c.DurationWeeks, &c.WorkoutsPerWeek, &accessDays, &c.CoverKey, &c.IsPublished, &c.CreatedAt); err != nil {
		return nil, err
	}
	if accessDays.Valid {
		d := int(accessDays.Int32)
		c.AccessDays = &d
	}
	return c, nil
}

// CreateCourse сохраняет курс и возвращает его ID.
func (s *Storage) CreateCourse(ctx context.Context, c models.Course) (int64, error) {
	const op = "storage.CreateCourse"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO courses (slug, title, description, price_cents, currency, duration_weeks,
			      workouts_per_week, access_days, is_published)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, c.Slug, c.Title, c.Description, c.PriceCents, c.Currency,
		c.DurationWeeks, c.WorkoutsPerWeek, c.AccessDays, c.IsPublished).Scan(&id); err != nil {
		return 0, wrapErr(op, err)
	}
	return id, nil
}

// UpdateCourse перезаписывает поля курса, кроме обложки.
func (s *Storage) UpdateCourse(ctx context.Context, c models.Course) error {
	const op = "storage.UpdateCourse"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	query := `UPDATE courses
			  SET slug = $2, title = $3, description = $4, price_cents = $5, currency = $6,
			      duration_weeks = $7, workouts_per_week = $8, access_days = $9, is_published = $10
			  WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, c.ID, c.Slug, c.Title, c.Description, c.PriceCents, c.Currency,
		c.DurationWeeks, c.WorkoutsPerWeek, c.AccessDays, c.IsPublished)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// RemoveCourse удаляет курс вместе с тренировками, планами питания и записями.
// Курс с платежами удалить нельзя.
func (s *Storage) RemoveCourse(ctx context.Context, id int64) error {
	const op = "storage.RemoveCourse"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, models.ErrCourseInUse)
		}
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// GetCourse возвращает курс по ID.
func (s *Storage) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	const op = "storage.GetCourse"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	c, err := scanCourse(s.DB.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return c, nil
}

// ListCourses возвращает курсы каталога с фильтром по названию.
func (s *Storage) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	const op = "storage.ListCourses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	qb := psql.Select(courseColumns).From("courses").OrderBy("created_at DESC", "id DESC")
	if filter.OnlyPublished {
		qb = qb.Where(sq.Eq{"is_published": true})
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		qb = qb.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"description": pattern}})
	}
	qb = paginate(qb, filter.Limit, filter.Offset)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	courses := make([]models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return courses, nil
}

// SetCourseCover сохраняет ключ обложки в хранилище файлов.
func (s *Storage) SetCourseCover(ctx context.Context, id int64, key string) error {
	const op = "storage.SetCourseCover"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE courses SET cover_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// CreateWorkout добавляет тренировку в программу курса.
func (s *Storage) CreateWorkout(ctx context.Context, w models.Workout) (int64, error) {
	const op = "storage.CreateWorkout"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO workouts (course_id, position, title, description, video_url, duration_minutes)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, w.CourseID, w.Position, w.Title, w.Description,
		w.VideoURL, w.DurationMinutes).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrCourseNotFound)
		}
		return 0, wrapErr(op, err)
	}
	return id, nil
}

// ListWorkouts возвращает тренировки курса по порядку прохождения.
func (s *Storage) ListWorkouts(ctx context.Context, courseID int64) ([]models.Workout, error) {
	const op = "storage.ListWorkouts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, course_id, position, title, description, video_url, duration_minutes
			  FROM workouts WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	workouts := make([]models.Workout, 0)
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.CourseID, &w.Position, &w.Title, &w.Description, &w.VideoURL, &w.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return workouts, nil
}

// CreateMealPlan добавляет план питания в курс.
func (s *Storage) CreateMealPlan(ctx context.Context, m models.MealPlan) (int64, error) {
	const op = "storage.CreateMealPlan"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO meal_plans (course_id, position, title, content, calories)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, m.CourseID, m.Position, m.Title, m.Content, m.Calories).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrCourseNotFound)
		}
		return 0, wrapErr(op, err)
	}
	return id, nil
}

// ListMealPlans возвращает планы питания курса по порядку.
func (s *Storage) ListMealPlans(ctx context.Context, courseID int64) ([]models.MealPlan, error) {
	const op = "storage.ListMealPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, course_id, position, title, content, calories
			  FROM meal_plans WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	meals := make([]models.MealPlan, 0)
	for rows.Next() {
		var m models.MealPlan
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Position, &m.Title, &m.Content, &m.Calories); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return meals, nil
}
