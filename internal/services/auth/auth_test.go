package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/magabrotheeeer/fitness-courses/internal/lib/jwt"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/password"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	services "github.com/magabrotheeeer/fitness-courses/internal/services/auth"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	return m.Called(ctx, userUID, passwordHash).Error(0)
}

func (m *UserRepoMock) UpdateRole(ctx context.Context, userUID, role string) error {
	return m.Called(ctx, userUID, role).Error(0)
}

type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(username, role, userUID string) (string, error) {
	args := m.Called(username, role, userUID)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

// memoryTokens простое хранилище токенов в памяти.
type memoryTokens struct {
	values map[string]string
	ttl    time.Duration
	err    error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{values: make(map[string]string)}
}

func (m *memoryTokens) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value.(string)
	m.ttl = expiration
	return nil
}

func (m *memoryTokens) Pop(_ context.Context, key string, result any) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	v, ok := m.values[key]
	if !ok {
		return false, nil
	}
	delete(m.values, key)
	*(result.(*string)) = v
	return true, nil
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Publish(ctx context.Context, message any) error {
	return m.Called(ctx, message).Error(0)
}

type fixture struct {
	users    *UserRepoMock
	jwt      *JwtMakerMock
	tokens   *memoryTokens
	notifier *NotifierMock
	service  *services.AuthService
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(UserRepoMock),
		jwt:      new(JwtMakerMock),
		tokens:   newMemoryTokens(),
		notifier: new(NotifierMock),
	}
	f.service = services.NewAuthService(sl.Discard(), f.users, f.jwt, f.tokens, f.notifier, services.ResetOptions{
		TokenTTL:    30 * time.Minute,
		FrontendURL: "https://fit.example",
	})
	return f
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(f *fixture)
		wantUserUID string
		wantErr     error
	}{
		{
			name: "successful registration",
			setupMocks: func(f *fixture) {
				f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Email == "test@example.com" &&
						user.Username == "testuser" &&
						user.PasswordHash != "" &&
						user.PasswordHash != "password123" &&
						user.Role == models.RoleUser
				})).Return("some-uuid-string", nil).Once()
				f.notifier.On("Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
					return n.Kind == models.NotifyWelcome && n.Email == "test@example.com"
				})).Return(nil).Once()
			},
			wantUserUID: "some-uuid-string",
		},
		{
			name: "welcome email failure does not fail registration",
			setupMocks: func(f *fixture) {
				f.users.On("CreateUser", mock.Anything, mock.Anything).Return("uid", nil).Once()
				f.notifier.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
			},
			wantUserUID: "uid",
		},
		{
			name: "duplicate user",
			setupMocks: func(f *fixture) {
				f.users.On("CreateUser", mock.Anything, mock.Anything).Return("", models.ErrAlreadyExists).Once()
			},
			wantErr: models.ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			uid, err := f.service.Register(context.Background(), "test@example.com", "testuser", "password123")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				f.notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, uid)
			}
			f.users.AssertExpectations(t)
			f.notifier.AssertExpectations(t)
		})
	}
}

func TestAuthService_RegisterPasswordTooLong(t *testing.T) {
	f := newFixture()

	// 40 кириллических символов занимают 80 байт.
	_, err := f.service.Register(context.Background(), "test@example.com", "testuser", strings.Repeat("ж", 40))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("password123")
	require.NoError(t, err)
	user := &models.User{UID: "uid-1", Username: "testuser", PasswordHash: hash, Role: models.RoleUser}

	tests := []struct {
		name       string
		password   string
		setupMocks func(f *fixture)
		wantToken  string
		wantErr    error
	}{
		{
			name:     "valid credentials",
			password: "password123",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByUsername", mock.Anything, "testuser").Return(user, nil).Once()
				f.jwt.On("GenerateToken", "testuser", models.RoleUser, "uid-1").Return("signed", nil).Once()
			},
			wantToken: "signed",
		},
		{
			name:     "wrong password",
			password: "wrong",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByUsername", mock.Anything, "testuser").Return(user, nil).Once()
			},
			wantErr: models.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			password: "password123",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByUsername", mock.Anything, "testuser").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			token, got, err := f.service.Login(context.Background(), "testuser", tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, "uid-1", got.UID)
			f.jwt.AssertExpectations(t)
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	f := newFixture()
	f.jwt.On("ParseToken", "good").Return(&customjwt.CustomClaims{Username: "bob", Role: models.RoleAdmin, UserUID: "uid-2"}, nil).Once()
	f.jwt.On("ParseToken", "bad").Return(nil, errors.New("token expired")).Once()

	user, err := f.service.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &models.User{UID: "uid-2", Username: "bob", Role: models.RoleAdmin}, user)

	_, err = f.service.ValidateToken(context.Background(), "bad")
	assert.Error(t, err)
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newFixture()
	user := &models.User{UID: "uid-3", Email: "anna@example.com", Username: "anna"}
	f.users.On("GetUserByEmail", mock.Anything, "anna@example.com").Return(user, nil).Once()

	var link string
	f.notifier.On("Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Kind == models.NotifyPasswordReset
	})).Run(func(args mock.Arguments) {
		link = args.Get(1).(models.Notification).Data["link"]
	}).Return(nil).Once()

	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "anna@example.com"))
	assert.Equal(t, 30*time.Minute, f.tokens.ttl)
	require.True(t, strings.HasPrefix(link, "https://fit.example/password/reset?token="))
	token := strings.TrimPrefix(link, "https://fit.example/password/reset?token=")

	f.users.On("UpdatePassword", mock.Anything, "uid-3", mock.MatchedBy(func(hash string) bool {
		return password.CompareHash(hash, "new-password") == nil
	})).Return(nil).Once()

	require.NoError(t, f.service.ResetPassword(context.Background(), token, "new-password"))
	assert.ErrorIs(t, f.service.ResetPassword(context.Background(), token, "again-password"), models.ErrInvalidResetToken)
	f.users.AssertExpectations(t)
}

func TestAuthService_RequestPasswordResetUnknownEmail(t *testing.T) {
	f := newFixture()
	f.users.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, models.ErrNotFound).Once()

	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.tokens.values)
	f.notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAuthService_ResetPasswordUnknownToken(t *testing.T) {
	f := newFixture()
	err := f.service.ResetPassword(context.Background(), "missing", "new-password")
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)
	f.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	t.Run("creates missing admin", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByUsername", mock.Anything, "root").Return(nil, models.ErrNotFound).Once()
		f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleAdmin && u.Email == "root@example.com"
		})).Return("uid-admin", nil).Once()

		require.NoError(t, f.service.EnsureAdmin(context.Background(), "root@example.com", "root", "password123"))
		f.users.AssertExpectations(t)
	})

	t.Run("promotes existing user", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByUsername", mock.Anything, "root").Return(&models.User{UID: "uid-4", Role: models.RoleUser}, nil).Once()
		f.users.On("UpdateRole", mock.Anything, "uid-4", models.RoleAdmin).Return(nil).Once()

		require.NoError(t, f.service.EnsureAdmin(context.Background(), "root@example.com", "root", "password123"))
		f.users.AssertExpectations(t)
	})

	t.Run("already admin", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByUsername", mock.Anything, "root").Return(&models.User{UID: "uid-4", Role: models.RoleAdmin}, nil).Once()

		require.NoError(t, f.service.EnsureAdmin(context.Background(), "root@example.com", "root", "password123"))
		f.users.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
	})
}
