package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	plansvc "github.com/magabrotheeeer/fitness-courses/internal/services/planner"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}

func (m *RepoMock) CreateEnrollment(ctx context.Context, e models.Enrollment, days []models.PlanDay) (int64, error) {
	args := m.Called(ctx, e, days)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) GetActiveEnrollment(ctx context.Context, userUID string) (*models.Enrollment, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	e := *args.Get(0).(*models.Enrollment)
	return &e, args.Error(1)
}

func (m *RepoMock) ListEnrollmentsByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Enrollment), args.Error(1)
}

func (m *RepoMock) ApplyReplan(ctx context.Context, r models.Replan) error {
	return m.Called(ctx, r).Error(0)
}

func (m *RepoMock) CancelEnrollment(ctx context.Context, id int64, from time.Time) error {
	return m.Called(ctx, id, from).Error(0)
}

func (m *RepoMock) CompleteEnrollment(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RepoMock) ListPlanDays(ctx context.Context, enrollmentID int64, from, to time.Time) ([]models.PlanDayView, error) {
	args := m.Called(ctx, enrollmentID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PlanDayView), args.Error(1)
}

func (m *RepoMock) GetPlanDayForUser(ctx context.Context, userUID string, id int64) (*models.PlanDay, error) {
	args := m.Called(ctx, userUID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanDay), args.Error(1)
}

func (m *RepoMock) CompletePlanDay(ctx context.Context, id int64, at time.Time) (*models.PlanDay, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanDay), args.Error(1)
}

func (m *RepoMock) CountPendingWorkouts(ctx context.Context, enrollmentID int64) (int, error) {
	args := m.Called(ctx, enrollmentID)
	return args.Int(0), args.Error(1)
}

type AccessMock struct {
	mock.Mock
}

func (m *AccessMock) HasAccess(ctx context.Context, userUID string, courseID int64) (bool, error) {
	args := m.Called(ctx, userUID, courseID)
	return args.Bool(0), args.Error(1)
}

type PlannerMock struct {
	mock.Mock
}

func (m *PlannerMock) Initial(ctx context.Context, course *models.Course, start time.Time, days models.Weekdays) ([]models.PlanDay, error) {
	args := m.Called(ctx, course, start, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PlanDay), args.Error(1)
}

func (m *PlannerMock) Replan(ctx context.Context, e *models.Enrollment, course *models.Course, cutoff, resume time.Time, days models.Weekdays) (*models.Replan, error) {
	args := m.Called(ctx, e, course, cutoff, resume, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Replan), args.Error(1)
}

// 2024-03-11 понедельник
var now = time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func weekdays(t *testing.T, days ...int) models.Weekdays {
	t.Helper()
	w, err := models.NewWeekdays(days)
	require.NoError(t, err)
	return w
}

func newService() (*EnrollmentService, *RepoMock, *AccessMock, *PlannerMock) {
	repo := new(RepoMock)
	access := new(AccessMock)
	planner := new(PlannerMock)
	s := NewEnrollmentService(sl.Discard(), repo, access, planner)
	s.now = func() time.Time { return now }
	return s, repo, access, planner
}

var course = &models.Course{ID: 5, DurationWeeks: 4, WorkoutsPerWeek: 3, IsPublished: true}

func TestEnrollmentService_EnrollValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     models.EnrollRequest
		setup   func(repo *RepoMock, access *AccessMock)
		wantErr error
	}{
		{
			name:    "start in the past",
			req:     models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "2024-03-10"},
			wantErr: models.ErrStartInPast,
		},
		{
			name:    "malformed date",
			req:     models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "tomorrow"},
			wantErr: models.ErrInvalidDate,
		},
		{
			name: "unknown course",
			req:  models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "2024-03-11"},
			setup: func(repo *RepoMock, _ *AccessMock) {
				repo.On("GetCourse", mock.Anything, int64(5)).Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrCourseNotFound,
		},
		{
			name: "wrong number of days",
			req:  models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3}, StartDate: "2024-03-11"},
			setup: func(repo *RepoMock, _ *AccessMock) {
				repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
			},
			wantErr: models.ErrInvalidWorkoutDays,
		},
		{
			name: "duplicate days",
			req:  models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 1, 3}, StartDate: "2024-03-11"},
			setup: func(repo *RepoMock, _ *AccessMock) {
				repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
			},
			wantErr: models.ErrInvalidWorkoutDays,
		},
		{
			name: "no access",
			req:  models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "2024-03-11"},
			setup: func(repo *RepoMock, access *AccessMock) {
				repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
				access.On("HasAccess", mock.Anything, "user-1", int64(5)).Return(false, nil).Once()
			},
			wantErr: models.ErrNoAccess,
		},
		{
			name: "already enrolled",
			req:  models.EnrollRequest{CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "2024-03-11"},
			setup: func(repo *RepoMock, access *AccessMock) {
				repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
				access.On("HasAccess", mock.Anything, "user-1", int64(5)).Return(true, nil).Once()
				repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(&models.Enrollment{ID: 1}, nil).Once()
			},
			wantErr: models.ErrActiveEnrollmentExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, access, _ := newService()
			if tt.setup != nil {
				tt.setup(repo, access)
			}

			_, err := s.Enroll(context.Background(), "user-1", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "CreateEnrollment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEnrollmentService_Enroll(t *testing.T) {
	s, repo, access, planner := newService()
	days := weekdays(t, 1, 3, 5)
	plan := []models.PlanDay{{Date: day("2024-03-11"), DayNumber: 1, IsWorkoutDay: true}}

	repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
	access.On("HasAccess", mock.Anything, "user-1", int64(5)).Return(true, nil).Once()
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(nil, models.ErrNotFound).Once()
	planner.On("Initial", mock.Anything, course, day("2024-03-11"), days).Return(plan, nil).Once()
	repo.On("CreateEnrollment", mock.Anything, mock.MatchedBy(func(e models.Enrollment) bool {
		return e.UserUID == "user-1" && e.WorkoutDays == days && e.Status == models.EnrollmentActive
	}), plan).Return(int64(12), nil).Once()

	e, err := s.Enroll(context.Background(), "user-1", models.EnrollRequest{
		CourseID: 5, WorkoutDays: []int{5, 3, 1}, StartDate: "2024-03-11",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), e.ID)
	assert.Equal(t, []int{1, 3, 5}, e.WorkoutDays.List())
	repo.AssertExpectations(t)
	planner.AssertExpectations(t)
}

func TestEnrollmentService_EnrollRaceOnUniqueIndex(t *testing.T) {
	s, repo, access, planner := newService()
	repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
	access.On("HasAccess", mock.Anything, "user-1", int64(5)).Return(true, nil).Once()
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(nil, models.ErrNotFound).Once()
	planner.On("Initial", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]models.PlanDay{}, nil).Once()
	repo.On("CreateEnrollment", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), models.ErrActiveEnrollmentExists).Once()

	_, err := s.Enroll(context.Background(), "user-1", models.EnrollRequest{
		CourseID: 5, WorkoutDays: []int{1, 3, 5}, StartDate: "2024-03-12",
	})
	assert.ErrorIs(t, err, models.ErrActiveEnrollmentExists)
}

func TestEnrollmentService_Current(t *testing.T) {
	s, repo, _, _ := newService()
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(nil, models.ErrNotFound).Once()

	_, err := s.Current(context.Background(), "user-1")
	assert.ErrorIs(t, err, models.ErrEnrollmentNotFound)
}

func TestEnrollmentService_Cancel(t *testing.T) {
	s, repo, _, _ := newService()
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(&models.Enrollment{ID: 3}, nil).Once()
	repo.On("CancelEnrollment", mock.Anything, int64(3), day("2024-03-11")).Return(nil).Once()

	require.NoError(t, s.Cancel(context.Background(), "user-1"))
	repo.AssertExpectations(t)
}

func TestEnrollmentService_Reschedule(t *testing.T) {
	current := &models.Enrollment{ID: 3, UserUID: "user-1", CourseID: 5, WorkoutDays: weekdays(t, 1, 3, 5), StartDate: day("2024-03-04")}
	newDays := weekdays(t, 2, 4, 6)

	t.Run("defaults to today", func(t *testing.T) {
		s, repo, _, planner := newService()
		repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(current, nil).Once()
		repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
		planner.On("Replan", mock.Anything, mock.Anything, course, day("2024-03-11"), day("2024-03-11"), newDays).
			Return(&models.Replan{EnrollmentID: 3, From: day("2024-03-11")}, nil).Once()
		repo.On("ApplyReplan", mock.Anything, mock.MatchedBy(func(r models.Replan) bool {
			return r.EnrollmentID == 3 && r.WorkoutDays != nil && *r.WorkoutDays == newDays
		})).Return(nil).Once()

		e, err := s.Reschedule(context.Background(), "user-1", models.RescheduleRequest{WorkoutDays: []int{2, 4, 6}})
		require.NoError(t, err)
		assert.Equal(t, newDays, e.WorkoutDays)
		repo.AssertExpectations(t)
	})

	t.Run("from a future date", func(t *testing.T) {
		s, repo, _, planner := newService()
		repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(current, nil).Once()
		repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
		planner.On("Replan", mock.Anything, mock.Anything, course, day("2024-03-18"), day("2024-03-18"), newDays).
			Return(&models.Replan{EnrollmentID: 3, From: day("2024-03-18")}, nil).Once()
		repo.On("ApplyReplan", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := s.Reschedule(context.Background(), "user-1", models.RescheduleRequest{WorkoutDays: []int{2, 4, 6}, FromDate: "2024-03-18"})
		require.NoError(t, err)
		planner.AssertExpectations(t)
	})

	t.Run("wrong day count", func(t *testing.T) {
		s, repo, _, planner := newService()
		repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(current, nil).Once()
		repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()

		_, err := s.Reschedule(context.Background(), "user-1", models.RescheduleRequest{WorkoutDays: []int{2}})
		assert.ErrorIs(t, err, models.ErrInvalidWorkoutDays)
		planner.AssertNotCalled(t, "Replan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("past from date", func(t *testing.T) {
		s, _, _, _ := newService()
		_, err := s.Reschedule(context.Background(), "user-1", models.RescheduleRequest{WorkoutDays: []int{2, 4, 6}, FromDate: "2024-03-01"})
		assert.ErrorIs(t, err, models.ErrStartInPast)
	})
}

type planContentStub struct {
	summary models.PlanSummary
}

func (p planContentStub) ListWorkouts(context.Context, int64) ([]models.Workout, error) {
	return []models.Workout{{ID: 41}, {ID: 42}}, nil
}

func (p planContentStub) ListMealPlans(context.Context, int64) ([]models.MealPlan, error) {
	return []models.MealPlan{{ID: 51}}, nil
}

func (p planContentStub) GetPlanSummary(context.Context, int64, time.Time) (models.PlanSummary, error) {
	return p.summary, nil
}

func TestEnrollmentService_RescheduleBeforeStart(t *testing.T) {
	repo := new(RepoMock)
	s := NewEnrollmentService(sl.Discard(), repo, new(AccessMock), plansvc.NewPlanner(planContentStub{}))
	s.now = func() time.Time { return now }

	future := &models.Enrollment{ID: 4, UserUID: "user-1", CourseID: 5, WorkoutDays: weekdays(t, 1, 3, 5), StartDate: day("2024-03-18")}
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(future, nil).Once()
	repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()

	var applied models.Replan
	repo.On("ApplyReplan", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		applied = args.Get(1).(models.Replan)
	}).Return(nil).Once()

	_, err := s.Reschedule(context.Background(), "user-1", models.RescheduleRequest{WorkoutDays: []int{2, 4, 6}})
	require.NoError(t, err)

	assert.Equal(t, day("2024-03-11"), applied.From)
	require.NotEmpty(t, applied.Days)
	assert.Equal(t, day("2024-03-18"), applied.Days[0].Date)
	assert.Equal(t, 1, applied.Days[0].DayNumber)
	for _, d := range applied.Days {
		assert.False(t, d.Date.Before(day("2024-03-18")), d.Date)
	}
	repo.AssertExpectations(t)
}

func TestEnrollmentService_Today(t *testing.T) {
	s, repo, _, _ := newService()
	repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(&models.Enrollment{ID: 3}, nil)
	repo.On("ListPlanDays", mock.Anything, int64(3), day("2024-03-11"), day("2024-03-11")).
		Return([]models.PlanDayView{{PlanDay: models.PlanDay{ID: 40, DayNumber: 8}}}, nil).Once()

	d, err := s.Today(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), d.ID)

	repo.On("ListPlanDays", mock.Anything, int64(3), day("2024-03-11"), day("2024-03-11")).
		Return([]models.PlanDayView{}, nil).Once()
	_, err = s.Today(context.Background(), "user-1")
	assert.ErrorIs(t, err, models.ErrPlanDayNotFound)
}

func TestEnrollmentService_ListPlan(t *testing.T) {
	enrollment := &models.Enrollment{ID: 3, StartDate: day("2024-03-04")}

	tests := []struct {
		name     string
		from, to string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  error
	}{
		{name: "defaults", wantFrom: day("2024-03-04"), wantTo: day("2024-03-31")},
		{name: "explicit", from: "2024-03-10", to: "2024-03-12", wantFrom: day("2024-03-10"), wantTo: day("2024-03-12")},
		{name: "reversed", from: "2024-03-10", to: "2024-03-01", wantErr: models.ErrInvalidDate},
		{name: "too long", from: "2024-01-01", to: "2025-06-01", wantErr: models.ErrInvalidDate},
		{name: "garbage", from: "x", wantErr: models.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _, _ := newService()
			repo.On("GetActiveEnrollment", mock.Anything, "user-1").Return(enrollment, nil).Once()
			if tt.wantErr == nil {
				repo.On("ListPlanDays", mock.Anything, int64(3), tt.wantFrom, tt.wantTo).Return([]models.PlanDayView{}, nil).Once()
			}

			_, err := s.ListPlan(context.Background(), "user-1", tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestEnrollmentService_CompleteDay(t *testing.T) {
	t.Run("future day", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, Date: day("2024-03-12")}, nil).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		assert.ErrorIs(t, err, models.ErrPlanDayInFuture)
	})

	t.Run("foreign day", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).Return(nil, models.ErrNotFound).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		assert.ErrorIs(t, err, models.ErrPlanDayNotFound)
	})

	t.Run("enrollment cancelled before marking", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, Date: day("2024-03-11"), IsWorkoutDay: true}, nil).Once()
		repo.On("CompletePlanDay", mock.Anything, int64(7), now).Return(nil, models.ErrNotFound).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		assert.ErrorIs(t, err, models.ErrPlanDayNotFound)
		repo.AssertNotCalled(t, "CountPendingWorkouts", mock.Anything, mock.Anything)
	})

	t.Run("already completed is idempotent", func(t *testing.T) {
		s, repo, _, _ := newService()
		done := now.Add(-time.Hour)
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, Date: day("2024-03-11"), CompletedAt: &done}, nil).Once()

		d, err := s.CompleteDay(context.Background(), "user-1", 7)
		require.NoError(t, err)
		assert.Equal(t, done, *d.CompletedAt)
		repo.AssertNotCalled(t, "CompletePlanDay", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("last workout completes enrollment", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, Date: day("2024-03-11"), IsWorkoutDay: true}, nil).Once()
		repo.On("CompletePlanDay", mock.Anything, int64(7), now).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, IsWorkoutDay: true, CompletedAt: &now}, nil).Once()
		repo.On("CountPendingWorkouts", mock.Anything, int64(3)).Return(0, nil).Once()
		repo.On("CompleteEnrollment", mock.Anything, int64(3)).Return(nil).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("workouts remain", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, Date: day("2024-03-10"), IsWorkoutDay: true}, nil).Once()
		repo.On("CompletePlanDay", mock.Anything, int64(7), now).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, IsWorkoutDay: true, CompletedAt: &now}, nil).Once()
		repo.On("CountPendingWorkouts", mock.Anything, int64(3)).Return(4, nil).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "CompleteEnrollment", mock.Anything, mock.Anything)
	})

	t.Run("counting failure does not fail completion", func(t *testing.T) {
		s, repo, _, _ := newService()
		repo.On("GetPlanDayForUser", mock.Anything, "user-1", int64(7)).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, Date: day("2024-03-10"), IsWorkoutDay: true}, nil).Once()
		repo.On("CompletePlanDay", mock.Anything, int64(7), now).
			Return(&models.PlanDay{ID: 7, EnrollmentID: 3, IsWorkoutDay: true, CompletedAt: &now}, nil).Once()
		repo.On("CountPendingWorkouts", mock.Anything, int64(3)).Return(0, errors.New("db down")).Once()

		_, err := s.CompleteDay(context.Background(), "user-1", 7)
		require.NoError(t, err)
	})
}

func TestEnrollmentService_ListByCourse(t *testing.T) {
	s, repo, _, _ := newService()
	repo.On("GetCourse", mock.Anything, int64(5)).Return(course, nil).Once()
	repo.On("ListEnrollmentsByCourse", mock.Anything, int64(5)).Return([]models.Enrollment{{ID: 1}, {ID: 2}}, nil).Once()
	repo.On("GetCourse", mock.Anything, int64(6)).Return(nil, models.ErrNotFound).Once()

	list, err := s.ListByCourse(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.ListByCourse(context.Background(), 6)
	assert.ErrorIs(t, err, models.ErrCourseNotFound)
}
