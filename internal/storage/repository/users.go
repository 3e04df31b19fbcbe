package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const userColumns = "uid, email, username, password_hash, role, created_at"

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	var uid string
	query := `INSERT INTO users (email, username, password_hash, role)
			  VALUES ($1, $2, $3, $4)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query, user.Email, user.Username, user.PasswordHash, role).Scan(&uid); err != nil {
		return "", wrapErr(op, err)
	}
	return uid, nil
}

func (s *Storage) getUserBy(ctx context.Context, op, column string, value any) (*models.User, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := "SELECT " + userColumns + " FROM users WHERE " + column + " = $1"
	u := &models.User{}
	if err := s.DB.QueryRowContext(ctx, query, value).Scan(
		&u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt,
	); err != nil {
		return nil, wrapErr(op, err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUserByUsername", "username", username)
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUserByEmail", "email", email)
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUser", "uid", userUID)
}

// UpdatePassword заменяет хэш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE uid = $1`, userUID, passwordHash)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// UpdateRole меняет роль пользователя.
func (s *Storage) UpdateRole(ctx context.Context, userUID, role string) error {
	const op = "storage.UpdateRole"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET role = $2 WHERE uid = $1`, userUID, role)
	if err != nil {
		return wrapErr(op, err)
	}
	return expectAffected(op, res)
}

// ListUsers ищет пользователей по подстроке email/username и роли.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	qb := psql.Select(userColumns).From("users").OrderBy("created_at DESC", "username")
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		qb = qb.Where(sq.Or{sq.ILike{"email": pattern}, sq.ILike{"username": pattern}})
	}
	if filter.Role != "" {
		qb = qb.Where(sq.Eq{"role": filter.Role})
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

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func paginate(qb sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	qb = qb.Limit(uint64(limit))
	if offset > 0 {
		qb = qb.Offset(uint64(offset))
	}
	return qb
}
