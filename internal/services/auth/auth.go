// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/fitness-courses/internal/cache"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/jwt"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/password"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)

	// GetUserByUsername возвращает пользователя по имени или models.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByEmail возвращает пользователя по email или models.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
	UpdateRole(ctx context.Context, userUID, role string) error
}

// TokenStore хранилище одноразовых токенов сброса пароля.
type TokenStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Pop(ctx context.Context, key string, result any) (bool, error)
}

// Notifier публикует уведомления в очередь.
type Notifier interface {
	Publish(ctx context.Context, message any) error
}

// ResetOptions параметры ссылки сброса пароля.
type ResetOptions struct {
	TokenTTL    time.Duration
	FrontendURL string
}

// AuthService отвечает за регистрацию, авторизацию, валидацию JWT и сброс пароля.
type AuthService struct {
	log      *slog.Logger
	users    UserRepository
	jwtMaker jwt.Maker
	tokens   TokenStore
	notifier Notifier
	reset    ResetOptions
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker, tokens TokenStore, notifier Notifier, reset ResetOptions) *AuthService {
	return &AuthService{
		log:      log,
		users:    users,
		jwtMaker: jwtMaker,
		tokens:   tokens,
		notifier: notifier,
		reset:    reset,
	}
}

// Register создает нового пользователя с хэшированием пароля и ролью "user".
// Письмо-приветствие отправляется асинхронно через очередь, ошибка публикации только логируется.
func (s *AuthService) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	const op = "services.AuthService.Register"

	hashed, err := hashPassword(op, rawPassword)
	if err != nil {
		return "", err
	}
	uid, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, models.Notification{
		Kind:     models.NotifyWelcome,
		Email:    email,
		Username: username,
	})
	return uid, nil
}

// Login проверяет пароль пользователя и выпускает JWT.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (string, *models.User, error) {
	const op = "services.AuthService.Login"

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", nil, models.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// ValidateToken проверяет JWT и возвращает личность пользователя из claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.User, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &models.User{
		UID:      claims.UserUID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// RequestPasswordReset выпускает одноразовый токен и отправляет письмо со ссылкой.
// Для неизвестного email ничего не делает и тоже возвращает nil.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "services.AuthService.RequestPasswordReset"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	token := uuid.NewString()
	if err := s.tokens.Set(ctx, cache.ResetTokenKey(token), user.UID, s.reset.TokenTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, models.Notification{
		Kind:     models.NotifyPasswordReset,
		Email:    user.Email,
		Username: user.Username,
		Data: map[string]string{
			"link": s.resetLink(token),
			"ttl":  s.reset.TokenTTL.String(),
		},
	})
	return nil
}

// ResetPassword меняет пароль по токену. Токен удаляется при первом использовании.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "services.AuthService.ResetPassword"

	var uid string
	found, err := s.tokens.Pop(ctx, cache.ResetTokenKey(token), &uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || uid == "" {
		return models.ErrInvalidResetToken
	}

	hashed, err := hashPassword(op, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, uid, hashed); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidResetToken
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureAdmin создает администратора при первом запуске или повышает роль существующего пользователя.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, username, rawPassword string) error {
	const op = "services.AuthService.EnsureAdmin"

	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin {
			return nil
		}
		if err := s.users.UpdateRole(ctx, user.UID, models.RoleAdmin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AuthService) resetLink(token string) string {
	return s.reset.FrontendURL + "/password/reset?token=" + url.QueryEscape(token)
}

func (s *AuthService) notify(ctx context.Context, n models.Notification) {
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.log.Error("failed to publish notification", slog.String("kind", n.Kind), sl.Err(err))
	}
}

// hashPassword отличает слишком длинный пароль (ошибка ввода) от сбоя bcrypt.
func hashPassword(op, raw string) (string, error) {
	hashed, err := password.GetHash(raw)
	if errors.Is(err, password.ErrTooLong) {
		return "", fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hashed, nil
}
