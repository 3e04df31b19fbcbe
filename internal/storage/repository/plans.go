package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const planDayColumns = "p.id, p.enrollment_id, p.date, p.day_number, p.is_workout_day, p.workout_id, p.meal_plan_id, p.completed_at"

func scanPlanDay(r rowScanner, extra ...any) (*models.PlanDay, error) {
	d := &models.PlanDay{}
	var workoutID, mealID sql.NullInt64
	var completed sql.NullTime
	dest := append([]any{&d.ID, &d.EnrollmentID, &d.Date, &d.DayNumber, &d.IsWorkoutDay, &workoutID, &mealID, &completed}, extra...)
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}
	d.WorkoutID = nullInt64(workoutID)
	d.MealPlanID = nullInt64(mealID)
	d.CompletedAt = nullTime(completed)
	return d, nil
}

// insertPlanDays вставляет дни плана одним запросом.
func insertPlanDays(ctx context.Context, q queryer, op string, enrollmentID int64, days []models.PlanDay) error {
	if len(days) == 0 {
		return nil
	}
	ib := psql.Insert("plan_days").
		Columns("enrollment_id", "date", "day_number", "is_workout_day", "workout_id", "meal_plan_id")
	for _, d := range days {
		ib = ib.Values(enrollmentID, d.Date, d.DayNumber, d.IsWorkoutDay, d.WorkoutID, d.MealPlanID)
	}
	query, args, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build insert: %w", op, err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// ListPlanDays возвращает дни плана в [from, to] вместе с тренировками и питанием.
func (s *Storage) ListPlanDays(ctx context.Context, enrollmentID int64, from, to time.Time) ([]models.PlanDayView, error) {
	const op = "storage.ListPlanDays"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + planDayColumns + `,
			      w.id, w.course_id, w.position, w.title, w.description, w.video_url, w.duration_minutes,
			      m.id, m.course_id, m.position, m.title, m.content, m.calories
			  FROM plan_days p
			  LEFT JOIN workouts w ON w.id = p.workout_id
			  LEFT JOIN meal_plans m ON m.id = p.meal_plan_id
			  WHERE p.enrollment_id = $1 AND p.date BETWEEN $2::date AND $3::date
			  ORDER BY p.date`
	rows, err := s.DB.QueryContext(ctx, query, enrollmentID, from, to)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	views := make([]models.PlanDayView, 0)
	for rows.Next() {
		var (
			wID, wCourse          sql.NullInt64
			wPos, wDur            sql.NullInt32
			wTitle, wDesc, wVideo sql.NullString
			mID, mCourse          sql.NullInt64
			mPos, mCal            sql.NullInt32
			mTitle, mContent      sql.NullString
		)
		d, err := scanPlanDay(rows,
			&wID, &wCourse, &wPos, &wTitle, &wDesc, &wVideo, &wDur,
			&mID, &mCourse, &mPos, &mTitle, &mContent, &mCal)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		v := models.PlanDayView{PlanDay: *d}
		if wID.Valid {
			v.Workout = &models.Workout{
				ID: wID.Int64, CourseID: wCourse.Int64, Position: int(wPos.Int32), Title: wTitle.String,
				Description: wDesc.String, VideoURL: wVideo.String, DurationMinutes: int(wDur.Int32),
			}
		}
		if mID.Valid {
			v.MealPlan = &models.MealPlan{
				ID: mID.Int64, CourseID: mCourse.Int64, Position: int(mPos.Int32), Title: mTitle.String,
				Content: mContent.String, Calories: int(mCal.Int32),
			}
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return views, nil
}

// GetPlanDayForUser возвращает день плана, если он принадлежит активной записи пользователя.
func (s *Storage) GetPlanDayForUser(ctx context.Context, userUID string, id int64) (*models.PlanDay, error) {
	const op = "storage.GetPlanDayForUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + planDayColumns + `
			  FROM plan_days p
			  JOIN enrollments e ON e.id = p.enrollment_id
			  WHERE p.id = $1 AND e.user_uid = $2 AND e.status = 'active'`
	d, err := scanPlanDay(s.DB.QueryRowContext(ctx, query, id, userUID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return d, nil
}

// CompletePlanDay отмечает день выполненным. Повторная отметка сохраняет первое время.
// Дни отменённых и завершённых записей не отмечаются.
func (s *Storage) CompletePlanDay(ctx context.Context, id int64, at time.Time) (*models.PlanDay, error) {
	const op = "storage.CompletePlanDay"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `UPDATE plan_days p SET completed_at = COALESCE(p.completed_at, $2)
			  WHERE p.id = $1 AND EXISTS (
			      SELECT 1 FROM enrollments e WHERE e.id = p.enrollment_id AND e.status = 'active'
			  )
			  RETURNING ` + planDayColumns
	d, err := scanPlanDay(s.DB.QueryRowContext(ctx, query, id, at))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return d, nil
}

// GetPlanSummary считает использованные тренировочные слоты и последний номер дня
// среди дней раньше before, а также дату последнего выполненного дня.
func (s *Storage) GetPlanSummary(ctx context.Context, enrollmentID int64, before time.Time) (models.PlanSummary, error) {
	const op = "storage.GetPlanSummary"
	if err := checkCtx(ctx, op); err != nil {
		return models.PlanSummary{}, err
	}
	query := `SELECT
			      COUNT(*) FILTER (WHERE is_workout_day AND date < $2::date),
			      COALESCE(MAX(day_number) FILTER (WHERE date < $2::date), 0),
			      MAX(date) FILTER (WHERE completed_at IS NOT NULL)
			  FROM plan_days
			  WHERE enrollment_id = $1`
	var sum models.PlanSummary
	var lastCompleted sql.NullTime
	if err := s.DB.QueryRowContext(ctx, query, enrollmentID, before).Scan(
		&sum.WorkoutSlotsUsed, &sum.LastDayNumber, &lastCompleted,
	); err != nil {
		return models.PlanSummary{}, wrapErr(op, err)
	}
	sum.LastCompleted = nullTime(lastCompleted)
	return sum, nil
}

// CountPendingWorkouts количество невыполненных тренировочных дней записи.
func (s *Storage) CountPendingWorkouts(ctx context.Context, enrollmentID int64) (int, error) {
	const op = "storage.CountPendingWorkouts"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_days
			  WHERE enrollment_id = $1 AND is_workout_day AND completed_at IS NULL`, enrollmentID).Scan(&n)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}

// FindWorkoutDaysOn возвращает тренировки активных записей на дату.
func (s *Storage) FindWorkoutDaysOn(ctx context.Context, date time.Time) ([]models.PlanReminder, error) {
	const op = "storage.FindWorkoutDaysOn"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT u.email, u.username, c.title, COALESCE(w.title, ''), p.date
			  FROM plan_days p
			  JOIN enrollments e ON e.id = p.enrollment_id AND e.status = 'active'
			  JOIN users u ON u.uid = e.user_uid
			  JOIN courses c ON c.id = e.course_id
			  LEFT JOIN workouts w ON w.id = p.workout_id
			  WHERE p.date = $1::date AND p.is_workout_day AND p.completed_at IS NULL`
	rows, err := s.DB.QueryContext(ctx, query, date)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	reminders := make([]models.PlanReminder, 0)
	for rows.Next() {
		var r models.PlanReminder
		if err := rows.Scan(&r.Email, &r.Username, &r.CourseTitle, &r.WorkoutTitle, &r.Date); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}
