// Package subscription содержит бизнес-логику доступа к платному контенту:
// проверку плана при каждом обращении, первое посещение дашборда и
// административное изменение планов.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/predictor-portal/internal/cache"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
	"github.com/magabrotheeeer/predictor-portal/internal/storage/repository"
)

var (
	// ErrUserNotFound запись пользователя отсутствует.
	ErrUserNotFound = repository.ErrUserNotFound
	// ErrForbidden действие над чужой записью.
	ErrForbidden = errors.New("forbidden")
	// ErrPlanTypeRequired нельзя продлить план пользователю без активного типа плана.
	ErrPlanTypeRequired = errors.New("plan type is required")
)

// Источники событий о планах.
const (
	SourceGate  = "gate"
	SourceSweep = "sweep"
	SourceAdmin = "admin"
)

// Repository хранилище пользователей.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	EnsureUser(ctx context.Context, u models.User) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdatePlan(ctx context.Context, id string, st plan.State) (*models.User, error)
}

// Cache кеш записей пользователей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher отправляет события о планах.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service реализует шлюз доступа и административные операции.
type Service struct {
	repo    Repository
	cache   Cache
	pub     Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewService создаёт Service. metrics может быть nil.
func NewService(repo Repository, c Cache, pub Publisher, m *metrics.Metrics, log *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:    repo,
		cache:   c,
		pub:     pub,
		metrics: m,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
	}
}

// getUser читает запись из кеша, при промахе из хранилища.
// Ошибки кеша не прерывают чтение.
func (s *Service) getUser(ctx context.Context, id string) (*models.User, error) {
	key := cache.UserKey(id)

	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

func (s *Service) remember(ctx context.Context, u *models.User) {
	key := cache.UserKey(u.ID)
	if err := s.cache.Set(ctx, key, u, s.ttl); err != nil {
		s.log.Warn("failed to cache user", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) forget(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.UserKey(id))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cached users", slog.Any("keys", keys), sl.Err(err))
	}
}

// save записывает новое состояние плана, сбрасывает кеш и публикует событие.
func (s *Service) save(ctx context.Context, id string, st plan.State, source, actor string) (*models.User, error) {
	const op = "subscription.save"

	updated, err := s.repo.UpdatePlan(ctx, id, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.forget(ctx, id)
	s.notify(ctx, updated, source, actor)
	return updated, nil
}

func (s *Service) notify(ctx context.Context, u *models.User, source, actor string) {
	key := rabbitmq.RoutingChanged
	if u.PlanType != nil && *u.PlanType == plan.Expired {
		key = rabbitmq.RoutingExpired
	}
	if err := s.pub.Publish(ctx, key, NewPlanEvent(u, source, actor, s.now())); err != nil {
		s.log.Warn("failed to publish plan event",
			slog.String("user_id", u.ID), slog.String("routing_key", key), sl.Err(err))
	}
}

// NewPlanEvent собирает событие об изменении плана пользователя u.
func NewPlanEvent(u *models.User, source, actor string, at time.Time) models.PlanEvent {
	e := models.PlanEvent{
		EventID:    uuid.NewString(),
		UserID:     u.ID,
		Email:      u.Email,
		IsActive:   u.IsActive,
		Source:     source,
		Actor:      actor,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
	if u.PlanType != nil {
		e.PlanType = string(*u.PlanType)
	}
	if u.PlanEndTime != nil {
		end := u.PlanEndTime.UTC().Format(time.RFC3339)
		e.PlanEndTime = &end
	}
	return e
}
