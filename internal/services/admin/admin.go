// Package services реализует операции админ-панели над пользователями.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// UserRepository хранилище пользователей.
type UserRepository interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateRole(ctx context.Context, userUID, role string) error
}

// AdminService поиск пользователей и управление ролями.
type AdminService struct {
	log   *slog.Logger
	users UserRepository
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(log *slog.Logger, users UserRepository) *AdminService {
	return &AdminService{log: log, users: users}
}

// ListUsers ищет пользователей по подстроке email или имени и роли.
func (s *AdminService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	const op = "services.AdminService.ListUsers"

	if filter.Role != "" && !validRole(filter.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, filter.Role)
	}
	users, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// GetUser возвращает пользователя по UID.
func (s *AdminService) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "services.AdminService.GetUser"

	u, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ChangeRole меняет роль пользователя. Администратор не может снять роль с себя.
func (s *AdminService) ChangeRole(ctx context.Context, actorUID, userUID, role string) (*models.User, error) {
	const op = "services.AdminService.ChangeRole"

	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
	if actorUID == userUID && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: cannot demote yourself", models.ErrForbidden)
	}
	if err := s.users.UpdateRole(ctx, userUID, role); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user role changed", slog.String("user_uid", userUID), slog.String("role", role))
	return s.GetUser(ctx, userUID)
}

func validRole(role string) bool {
	return role == models.RoleUser || role == models.RoleAdmin
}
