package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// grantSelect выбирает доступы; $1 это дата, на которую вычисляется признак
// заморозки, день UTC из frozenOn.
const grantSelect = `SELECT g.id, g.user_uid, g.course_id, g.starts_at, g.expires_at, g.source,
		g.revoked_at, g.created_at,
		EXISTS (
			SELECT 1 FROM access_freezes f
			WHERE f.grant_id = g.id AND $1::date BETWEEN f.start_date AND f.end_date
		) AS frozen
	FROM access_grants g `

// frozenOn календарный день UTC для параметра $1 в grantSelect.
func frozenOn(at time.Time) string {
	return schedule.Day(at).Format(schedule.DateLayout)
}

func scanGrant(r rowScanner) (*models.AccessGrant, error) {
	g := &models.AccessGrant{}
	var expires, revoked sql.NullTime
	if err := r.Scan(&g.ID, &g.UserUID, &g.CourseID, &g.StartsAt, &expires, &g.Source,
		&revoked, &g.CreatedAt, &g.Frozen); err != nil {
		return nil, err
	}
	g.ExpiresAt = nullTime(expires)
	g.RevokedAt = nullTime(revoked)
	return g, nil
}

func insertGrant(ctx context.Context, q queryer, op string, g models.AccessGrant) (int64, error) {
	var id int64
	query := `INSERT INTO access_grants (user_uid, course_id, starts_at, expires_at, source)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	if err := q.QueryRowContext(ctx, query, g.UserUID, g.CourseID, g.StartsAt, g.ExpiresAt, g.Source).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return 0, wrapErr(op, err)
	}
	return id, nil
}

// GetGrant возвращает доступ по ID.
func (s *Storage) GetGrant(ctx context.Context, id int64, at time.Time) (*models.AccessGrant, error) {
	const op = "storage.GetGrant"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	g, err := scanGrant(s.DB.QueryRowContext(ctx, grantSelect+"WHERE g.id = $2", frozenOn(at), id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return g, nil
}

// FindGrant возвращает последний неотозванный доступ пользователя к курсу.
func (s *Storage) FindGrant(ctx context.Context, userUID string, courseID int64, at time.Time) (*models.AccessGrant, error) {
	const op = "storage.FindGrant"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := grantSelect + `WHERE g.user_uid = $2 AND g.course_id = $3 AND g.revoked_at IS NULL
		ORDER BY g.expires_at DESC NULLS FIRST, g.id DESC
		LIMIT 1`
	g, err := scanGrant(s.DB.QueryRowContext(ctx, query, frozenOn(at), userUID, courseID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return g, nil
}

// ListGrantsByUser возвращает все доступы пользователя, новые первыми.
func (s *Storage) ListGrantsByUser(ctx context.Context, userUID string, at time.Time) ([]models.AccessGrant, error) {
	const op = "storage.ListGrantsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, grantSelect+"WHERE g.user_uid = $2 ORDER BY g.created_at DESC, g.id DESC", frozenOn(at), userUID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	grants := make([]models.AccessGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grants, nil
}

// UpsertGrant продлевает неотозванный доступ пользователя к курсу или создаёт новый.
func (s *Storage) UpsertGrant(ctx context.Context, userUID string, courseID int64, source string, now time.Time, days *int) (*models.AccessGrant, error) {
	const op = "storage.UpsertGrant"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var out *models.AccessGrant
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		g, err := upsertGrantTx(ctx, tx, op, userUID, courseID, source, now, days)
		out = g
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertGrantTx(ctx context.Context, tx *sql.Tx, op, userUID string, courseID int64, source string, now time.Time, days *int) (*models.AccessGrant, error) {
	query := grantSelect + `WHERE g.user_uid = $2 AND g.course_id = $3 AND g.revoked_at IS NULL
		ORDER BY g.expires_at DESC NULLS FIRST, g.id DESC
		LIMIT 1
		FOR UPDATE OF g`
	g, err := scanGrant(tx.QueryRowContext(ctx, query, frozenOn(now), userUID, courseID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		g = &models.AccessGrant{
			UserUID:   userUID,
			CourseID:  courseID,
			StartsAt:  now,
			ExpiresAt: models.ExpiryFrom(now, days),
			Source:    source,
			CreatedAt: now,
		}
		id, err := insertGrant(ctx, tx, op, *g)
		if err != nil {
			return nil, err
		}
		g.ID = id
		return g, nil
	case err != nil:
		return nil, wrapErr(op, err)
	}

	g.ExpiresAt = g.Extended(now, days)
	if _, err := tx.ExecContext(ctx, `UPDATE access_grants SET expires_at = $2 WHERE id = $1`, g.ID, g.ExpiresAt); err != nil {
		return nil, wrapErr(op, err)
	}
	return g, nil
}

// RevokeGrant отзывает доступ. Повторный отзыв сохраняет первую дату.
func (s *Storage) RevokeGrant(ctx context.Context, id int64, at time.Time) error {
	const op = "storage.RevokeGrant"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE access_grants SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// ListFreezes возвращает заморозки доступа по дате начала.
func (s *Storage) ListFreezes(ctx context.Context, grantID int64) ([]models.Freeze, error) {
	const op = "storage.ListFreezes"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, grant_id, start_date, end_date, days, created_at
			  FROM access_freezes WHERE grant_id = $1 ORDER BY start_date`, grantID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	freezes := make([]models.Freeze, 0)
	for rows.Next() {
		var f models.Freeze
		if err := rows.Scan(&f.ID, &f.GrantID, &f.StartDate, &f.EndDate, &f.Days, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		freezes = append(freezes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return freezes, nil
}

// ApplyFreeze в одной транзакции сохраняет заморозку, сдвигает срок доступа
// на её длину и перестраивает план активной записи на курс. Возвращает ID
// заморозки и новый срок доступа.
func (s *Storage) ApplyFreeze(ctx context.Context, app models.FreezeApplication) (int64, time.Time, error) {
	const op = "storage.ApplyFreeze"
	if err := checkCtx(ctx, op); err != nil {
		return 0, time.Time{}, err
	}

	f := app.Freeze
	var (
		freezeID  int64
		expiresAt time.Time
	)
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var expires, revoked sql.NullTime
		err := tx.QueryRowContext(ctx, `SELECT expires_at, revoked_at FROM access_grants WHERE id = $1 FOR UPDATE`,
			f.GrantID).Scan(&expires, &revoked)
		if err != nil {
			return wrapErr(op, err)
		}
		switch {
		case revoked.Valid:
			return fmt.Errorf("%s: %w", op, models.ErrGrantRevoked)
		case !expires.Valid:
			return fmt.Errorf("%s: %w", op, models.ErrFreezeUnlimited)
		}

		var count, total int
		err = tx.QueryRowContext(ctx, `SELECT count(*), COALESCE(SUM(days), 0) FROM access_freezes WHERE grant_id = $1`,
			f.GrantID).Scan(&count, &total)
		if err != nil {
			return wrapErr(op, err)
		}
		if count >= app.MaxCount || total+f.Days > app.MaxDays {
			return fmt.Errorf("%s: %w", op, models.ErrFreezeLimit)
		}
		if count != app.KnownFreezes {
			return fmt.Errorf("%s: %w", op, models.ErrConcurrentUpdate)
		}

		query := `INSERT INTO access_freezes (grant_id, start_date, end_date, days)
				  SELECT $1::bigint, $2::date, $3::date, $4::int
				  WHERE NOT EXISTS (
				      SELECT 1 FROM access_freezes
				      WHERE grant_id = $1 AND start_date <= $3::date AND end_date >= $2::date
				  )
				  RETURNING id`
		err = tx.QueryRowContext(ctx, query, f.GrantID, f.StartDate, f.EndDate, f.Days).Scan(&freezeID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, models.ErrFreezeOverlap)
		}
		if err != nil {
			return wrapErr(op, err)
		}

		err = tx.QueryRowContext(ctx, `UPDATE access_grants SET expires_at = expires_at + make_interval(days => $2)
				  WHERE id = $1 RETURNING expires_at`, f.GrantID, f.Days).Scan(&expiresAt)
		if err != nil {
			return wrapErr(op, err)
		}

		if app.Replan != nil {
			return applyReplanTx(ctx, tx, op, *app.Replan)
		}
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return freezeID, expiresAt.UTC(), nil
}

// FindGrantsExpiringBetween возвращает действующие доступы, истекающие в [from, to).
func (s *Storage) FindGrantsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.GrantReminder, error) {
	const op = "storage.FindGrantsExpiringBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT g.id, u.email, u.username, c.title, g.expires_at
			  FROM access_grants g
			  JOIN users u ON u.uid = g.user_uid
			  JOIN courses c ON c.id = g.course_id
			  WHERE g.revoked_at IS NULL AND g.expires_at >= $1 AND g.expires_at < $2
			  ORDER BY g.expires_at`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	reminders := make([]models.GrantReminder, 0)
	for rows.Next() {
		var r models.GrantReminder
		if err := rows.Scan(&r.GrantID, &r.Email, &r.Username, &r.CourseTitle, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}
