package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const enrollmentColumns = "id, user_uid, course_id, workout_days, start_date, status, created_at"

func scanEnrollment(r rowScanner) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	var days int16
	if err := r.Scan(&e.ID, &e.UserUID, &e.CourseID, &days, &e.StartDate, &e.Status, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.WorkoutDays = models.Weekdays(days)
	return e, nil
}

// CreateEnrollment сохраняет запись на курс вместе со сгенерированным планом.
// Вторая активная запись пользователя отклоняется уникальным индексом.
func (s *Storage) CreateEnrollment(ctx context.Context, e models.Enrollment, days []models.PlanDay) (int64, error) {
	const op = "storage.CreateEnrollment"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		query := `INSERT INTO enrollments (user_uid, course_id, workout_days, start_date, status)
				  VALUES ($1, $2, $3, $4, $5)
				  RETURNING id`
		err := tx.QueryRowContext(ctx, query, e.UserUID, e.CourseID, int16(e.WorkoutDays), e.StartDate, models.EnrollmentActive).Scan(&id)
		if err != nil {
			err = wrapErr(op, err)
			if errors.Is(err, models.ErrAlreadyExists) {
				return fmt.Errorf("%s: %w", op, models.ErrActiveEnrollmentExists)
			}
			return err
		}
		return insertPlanDays(ctx, tx, op, id, days)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetActiveEnrollment возвращает активную запись пользователя.
func (s *Storage) GetActiveEnrollment(ctx context.Context, userUID string) (*models.Enrollment, error) {
	const op = "storage.GetActiveEnrollment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_uid = $1 AND status = 'active'"
	e, err := scanEnrollment(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return e, nil
}

// FindActiveEnrollmentByCourse возвращает активную запись пользователя на конкретный курс.
func (s *Storage) FindActiveEnrollmentByCourse(ctx context.Context, userUID string, courseID int64) (*models.Enrollment, error) {
	const op = "storage.FindActiveEnrollmentByCourse"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_uid = $1 AND course_id = $2 AND status = 'active'"
	e, err := scanEnrollment(s.DB.QueryRowContext(ctx, query, userUID, courseID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return e, nil
}

// ListEnrollmentsByCourse возвращает все записи на курс.
func (s *Storage) ListEnrollmentsByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	const op = "storage.ListEnrollmentsByCourse"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, "SELECT "+enrollmentColumns+" FROM enrollments WHERE course_id = $1 ORDER BY created_at DESC", courseID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]models.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ApplyReplan заменяет незавершённые дни плана начиная с r.From.
func (s *Storage) ApplyReplan(ctx context.Context, r models.Replan) error {
	const op = "storage.ApplyReplan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		return applyReplanTx(ctx, tx, op, r)
	})
}

func applyReplanTx(ctx context.Context, tx *sql.Tx, op string, r models.Replan) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`, r.EnrollmentID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && status != models.EnrollmentActive) {
		return fmt.Errorf("%s: %w", op, models.ErrEnrollmentNotFound)
	}
	if err != nil {
		return wrapErr(op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_days
			  WHERE enrollment_id = $1 AND date >= $2 AND completed_at IS NULL`, r.EnrollmentID, r.From); err != nil {
		return wrapErr(op, err)
	}
	if r.WorkoutDays != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET workout_days = $2 WHERE id = $1`,
			r.EnrollmentID, int16(*r.WorkoutDays)); err != nil {
			return wrapErr(op, err)
		}
	}
	return insertPlanDays(ctx, tx, op, r.EnrollmentID, r.Days)
}

// CancelEnrollment отменяет запись и удаляет незавершённые дни плана начиная с from.
func (s *Storage) CancelEnrollment(ctx context.Context, id int64, from time.Time) error {
	const op = "storage.CancelEnrollment"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = 'cancelled' WHERE id = $1 AND status = 'active'`, id)
		if err != nil {
			return wrapErr(op, err)
		}
		if err := expectAffected(op, res); err != nil {
			return fmt.Errorf("%w: %w", models.ErrEnrollmentNotFound, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM plan_days
				  WHERE enrollment_id = $1 AND date >= $2 AND completed_at IS NULL`, id, from); err != nil {
			return wrapErr(op, err)
		}
		return nil
	})
}

// CompleteEnrollment переводит активную запись в завершённые.
func (s *Storage) CompleteEnrollment(ctx context.Context, id int64) error {
	const op = "storage.CompleteEnrollment"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, `UPDATE enrollments SET status = 'completed' WHERE id = $1 AND status = 'active'`, id); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// CompleteFinishedEnrollments завершает активные записи, у которых все дни плана прошли.
func (s *Storage) CompleteFinishedEnrollments(ctx context.Context, today time.Time) (int64, error) {
	const op = "storage.CompleteFinishedEnrollments"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `UPDATE enrollments e SET status = 'completed'
			  WHERE e.status = 'active'
			    AND EXISTS (SELECT 1 FROM plan_days p WHERE p.enrollment_id = e.id)
			    AND NOT EXISTS (SELECT 1 FROM plan_days p WHERE p.enrollment_id = e.id AND p.date >= $1::date)`
	res, err := s.DB.ExecContext(ctx, query, today)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
