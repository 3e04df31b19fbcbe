package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) FindGrantsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.GrantReminder, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GrantReminder), args.Error(1)
}

func (m *RepoMock) FindWorkoutDaysOn(ctx context.Context, date time.Time) ([]models.PlanReminder, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PlanReminder), args.Error(1)
}

func (m *RepoMock) CompleteFinishedEnrollments(ctx context.Context, today time.Time) (int64, error) {
	args := m.Called(ctx, today)
	return args.Get(0).(int64), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Publish(ctx context.Context, message any) error {
	return m.Called(ctx, message).Error(0)
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(repo *RepoMock, notifier *NotifierMock) *SchedulerService {
	s := NewSchedulerService(repo, notifier, sl.Discard())
	s.now = func() time.Time { return testNow }
	return s
}

func TestNotifyExpiringAccess(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	s := newTestService(repo, notifier)

	from := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	repo.On("FindGrantsExpiringBetween", mock.Anything, from, to).Return([]models.GrantReminder{
		{GrantID: 1, Email: "a@example.com", Username: "ann", CourseTitle: "Core", ExpiresAt: from.Add(5 * time.Hour)},
		{GrantID: 2, Email: "b@example.com", Username: "bob", CourseTitle: "Legs", ExpiresAt: from.Add(7 * time.Hour)},
	}, nil).Once()
	notifier.On("Publish", mock.Anything, models.Notification{
		Kind:     models.NotifyAccessExpiring,
		Email:    "a@example.com",
		Username: "ann",
		Data:     map[string]string{"course": "Core", "expires_at": "2025-03-11"},
	}).Return(errors.New("broker down")).Once()
	notifier.On("Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Email == "b@example.com" && n.Data["course"] == "Legs"
	})).Return(nil).Once()

	require.NoError(t, s.NotifyExpiringAccess(context.Background()))
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestNotifyExpiringAccess_RepoError(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	s := newTestService(repo, notifier)

	repo.On("FindGrantsExpiringBetween", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()

	err := s.NotifyExpiringAccess(context.Background())
	assert.Error(t, err)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNotifyTodayWorkouts(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	s := newTestService(repo, notifier)

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	repo.On("FindWorkoutDaysOn", mock.Anything, today).Return([]models.PlanReminder{
		{Email: "a@example.com", Username: "ann", CourseTitle: "Core", WorkoutTitle: "Plank day", Date: today},
	}, nil).Once()
	notifier.On("Publish", mock.Anything, models.Notification{
		Kind:     models.NotifyWorkoutToday,
		Email:    "a@example.com",
		Username: "ann",
		Data:     map[string]string{"course": "Core", "workout": "Plank day"},
	}).Return(nil).Once()

	require.NoError(t, s.NotifyTodayWorkouts(context.Background()))
	notifier.AssertExpectations(t)
}

func TestCompleteFinishedEnrollments(t *testing.T) {
	repo := new(RepoMock)
	s := newTestService(repo, new(NotifierMock))

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	repo.On("CompleteFinishedEnrollments", mock.Anything, today).Return(int64(3), nil).Once()

	require.NoError(t, s.CompleteFinishedEnrollments(context.Background()))
	repo.AssertExpectations(t)
}

func TestRegister(t *testing.T) {
	s := newTestService(new(RepoMock), new(NotifierMock))

	c := cron.New(cron.WithLocation(time.UTC))
	err := s.Register(context.Background(), c, config.Scheduler{
		AccessExpiringSpec:     "0 9 * * *",
		WorkoutReminderSpec:    "0 7 * * *",
		EnrollmentCompleteSpec: "@hourly",
	})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 3)

	err = s.Register(context.Background(), cron.New(), config.Scheduler{
		AccessExpiringSpec:     "every day",
		WorkoutReminderSpec:    "0 7 * * *",
		EnrollmentCompleteSpec: "@hourly",
	})
	assert.Error(t, err)
}

func TestWrap_SkipsAfterCancel(t *testing.T) {
	s := newTestService(new(RepoMock), new(NotifierMock))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	s.wrap(ctx, "test", func(context.Context) error {
		called = true
		return nil
	})()
	assert.False(t, called)
}
