package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ExpireDue(ctx context.Context, now time.Time) ([]*models.User, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(r Repository, c Cache, p Publisher, m *metrics.Metrics) *Service {
	s := NewService(r, c, p, m, newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func expiredUser(id string) *models.User {
	expired := plan.Expired
	return &models.User{ID: id, Email: id + "@example.com", PlanType: &expired}
}

func TestService_Sweep(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	m := metrics.New(prometheus.NewRegistry())

	r.On("ExpireDue", mock.Anything, fixedNow).Return([]*models.User{expiredUser("a"), expiredUser("b")}, nil).Once()
	c.On("Invalidate", mock.Anything, []string{"user:a", "user:b"}).Return(nil).Once()
	p.On("Publish", mock.Anything, rabbitmq.RoutingExpired, mock.MatchedBy(func(e models.PlanEvent) bool {
		return e.Source == "sweep" && e.PlanType == "Expired" && e.PlanEndTime == nil
	})).Return(nil).Twice()

	n, err := newTestService(r, c, p, m).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Expirations.WithLabelValues("sweep")))

	r.AssertExpectations(t)
	c.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestService_Sweep_NothingDue(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	r.On("ExpireDue", mock.Anything, fixedNow).Return([]*models.User{}, nil).Once()

	n, err := newTestService(r, c, p, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	c.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Sweep_SideEffectFailuresDoNotFail(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	r.On("ExpireDue", mock.Anything, fixedNow).Return([]*models.User{expiredUser("a")}, nil).Once()
	c.On("Invalidate", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	p.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	n, err := newTestService(r, c, p, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_Sweep_StoreError(t *testing.T) {
	r, c, p := new(RepoMock), new(CacheMock), new(PublisherMock)
	r.On("ExpireDue", mock.Anything, fixedNow).Return(nil, errors.New("db error")).Once()

	_, err := newTestService(r, c, p, nil).Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweeper.Sweep")
}
