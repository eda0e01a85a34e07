package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
)

func TestService_UpdateUser(t *testing.T) {
	const actor = "admin@example.com"
	activeDaily := func() *models.User {
		return &models.User{ID: "kp_1", Email: "jane@example.com", PlanType: ptr(plan.Daily), IsActive: true,
			PlanEndTime: ptr(fixedNow.Add(time.Hour))}
	}
	neverPaid := func() *models.User {
		return &models.User{ID: "kp_1", Email: "jane@example.com"}
	}

	tests := []struct {
		name      string
		current   func() *models.User
		req       UpdateRequest
		wantState *plan.State // nil: без записи в хранилище
		wantKey   string
		wantErr   error
	}{
		{
			name:      "deactivate expires plan",
			current:   activeDaily,
			req:       UpdateRequest{UserID: "kp_1", IsActive: ptr(false), PlanType: ptr("Yearly")},
			wantState: ptr(plan.ApplyExpiry(plan.State{})),
			wantKey:   rabbitmq.RoutingExpired,
		},
		{
			name:      "new plan type with computed end",
			current:   neverPaid,
			req:       UpdateRequest{UserID: "kp_1", PlanType: ptr("Yearly")},
			wantState: &plan.State{PlanType: ptr(plan.Yearly), IsActive: true, PlanEndTime: ptr(fixedNow.AddDate(1, 0, 0))},
			wantKey:   rabbitmq.RoutingChanged,
		},
		{
			name:    "new plan type with explicit end",
			current: neverPaid,
			req:     UpdateRequest{UserID: "kp_1", PlanType: ptr("Monthly"), PlanEndTime: ptr("2024-12-31T00:00:00.000Z")},
			wantState: &plan.State{PlanType: ptr(plan.Monthly), IsActive: true,
				PlanEndTime: ptr(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))},
			wantKey: rabbitmq.RoutingChanged,
		},
		{
			name:      "explicit expired plan type",
			current:   activeDaily,
			req:       UpdateRequest{UserID: "kp_1", PlanType: ptr("Expired"), IsActive: ptr(true)},
			wantState: ptr(plan.ApplyExpiry(plan.State{})),
			wantKey:   rabbitmq.RoutingExpired,
		},
		{
			name:    "only end time keeps current type",
			current: activeDaily,
			req:     UpdateRequest{UserID: "kp_1", PlanEndTime: ptr("2024-06-15")},
			wantState: &plan.State{PlanType: ptr(plan.Daily), IsActive: true,
				PlanEndTime: ptr(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))},
			wantKey: rabbitmq.RoutingChanged,
		},
		{
			name:      "reactivate renews current type",
			current:   activeDaily,
			req:       UpdateRequest{UserID: "kp_1", IsActive: ptr(true)},
			wantState: &plan.State{PlanType: ptr(plan.Daily), IsActive: true, PlanEndTime: ptr(fixedNow.AddDate(0, 0, 1))},
			wantKey:   rabbitmq.RoutingChanged,
		},
		{
			name:    "end time without plan type",
			current: neverPaid,
			req:     UpdateRequest{UserID: "kp_1", PlanEndTime: ptr("2030-01-01")},
			wantErr: ErrPlanTypeRequired,
		},
		{
			name: "reactivate expired record",
			current: func() *models.User {
				return &models.User{ID: "kp_1", PlanType: ptr(plan.Expired)}
			},
			req:     UpdateRequest{UserID: "kp_1", IsActive: ptr(true)},
			wantErr: ErrPlanTypeRequired,
		},
		{
			name:    "invalid plan type",
			current: activeDaily,
			req:     UpdateRequest{UserID: "kp_1", PlanType: ptr("Weekly")},
			wantErr: plan.ErrInvalidPlanType,
		},
		{
			name:    "invalid end time",
			current: activeDaily,
			req:     UpdateRequest{UserID: "kp_1", PlanType: ptr("Monthly"), PlanEndTime: ptr("soon")},
			wantErr: plan.ErrInvalidDate,
		},
		{
			name:    "nothing to change",
			current: activeDaily,
			req:     UpdateRequest{UserID: "kp_1", PlanType: ptr(""), PlanEndTime: ptr("  ")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
			current := tt.current()
			r.On("GetUser", mock.Anything, "kp_1").Return(current, nil).Once()
			if tt.wantState != nil {
				stored := current.WithPlanState(*tt.wantState)
				r.On("UpdatePlan", mock.Anything, "kp_1", *tt.wantState).Return(&stored, nil).Once()
				c.On("Invalidate", mock.Anything, []string{"user:kp_1"}).Return(nil).Once()
				p.On("Publish", mock.Anything, tt.wantKey, mock.MatchedBy(func(e models.PlanEvent) bool {
					return e.Source == SourceAdmin && e.Actor == actor && e.UserID == "kp_1"
				})).Return(nil).Once()
			}

			got, err := newTestService(r, c, p).UpdateUser(context.Background(), actor, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				r.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything)
				p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			if tt.wantState == nil {
				assert.Equal(t, current, got)
				r.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything)
			} else {
				assert.Equal(t, tt.wantState.IsActive, got.IsActive)
			}
			r.AssertExpectations(t)
			c.AssertExpectations(t)
			p.AssertExpectations(t)
		})
	}
}

func TestService_UpdateUser_NotFound(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	r.On("GetUser", mock.Anything, "missing").Return(nil, ErrUserNotFound).Once()

	_, err := newTestService(r, c, p).UpdateUser(context.Background(), "admin@example.com",
		UpdateRequest{UserID: "missing", PlanType: ptr("Monthly")})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_SetPlan(t *testing.T) {
	t.Run("assigns plan", func(t *testing.T) {
		r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
		current := &models.User{ID: "kp_1"}
		want := plan.State{PlanType: ptr(plan.Monthly), IsActive: true, PlanEndTime: ptr(fixedNow.AddDate(0, 1, 0))}
		stored := current.WithPlanState(want)

		r.On("GetUser", mock.Anything, "kp_1").Return(current, nil).Once()
		r.On("UpdatePlan", mock.Anything, "kp_1", want).Return(&stored, nil).Once()
		c.On("Invalidate", mock.Anything, []string{"user:kp_1"}).Return(nil).Once()
		p.On("Publish", mock.Anything, rabbitmq.RoutingChanged, mock.Anything).Return(nil).Once()

		got, err := newTestService(r, c, p).SetPlan(context.Background(), "admin@example.com", "kp_1", "Monthly", nil)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		r.AssertExpectations(t)
		c.AssertExpectations(t)
		p.AssertExpectations(t)
	})

	t.Run("invalid plan type does not write", func(t *testing.T) {
		r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
		r.On("GetUser", mock.Anything, "kp_1").Return(&models.User{ID: "kp_1"}, nil).Once()

		_, err := newTestService(r, c, p).SetPlan(context.Background(), "admin@example.com", "kp_1", "Lifetime", nil)
		require.ErrorIs(t, err, plan.ErrInvalidPlanType)
		r.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store error", func(t *testing.T) {
		r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
		r.On("GetUser", mock.Anything, "kp_1").Return(&models.User{ID: "kp_1"}, nil).Once()
		r.On("UpdatePlan", mock.Anything, "kp_1", mock.Anything).Return(nil, errors.New("db error")).Once()

		_, err := newTestService(r, c, p).SetPlan(context.Background(), "admin@example.com", "kp_1", "Daily", nil)
		require.Error(t, err)
		c.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})
}

func TestService_ListUsers(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	users := []*models.User{{ID: "kp_2"}, {ID: "kp_1"}}
	r.On("ListUsers", mock.Anything).Return(users, nil).Once()

	got, err := newTestService(r, c, p).ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, users, got)

	r2 := new(RepoMock)
	r2.On("ListUsers", mock.Anything).Return(nil, errors.New("db error")).Once()
	_, err = newTestService(r2, c, p).ListUsers(context.Background())
	require.Error(t, err)
}
