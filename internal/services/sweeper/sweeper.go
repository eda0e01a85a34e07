// Package sweeper переводит в Expired все планы с наступившей датой окончания,
// независимо от обращений пользователей.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/predictor-portal/internal/cache"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// Repository пакетное истечение планов.
type Repository interface {
	ExpireDue(ctx context.Context, now time.Time) ([]*models.User, error)
}

// Cache сброс кеша записей пользователей.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher отправляет события о планах.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service выполняет прогоны истечения.
type Service struct {
	repo    Repository
	cache   Cache
	pub     Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewService создаёт Service. metrics может быть nil.
func NewService(repo Repository, c Cache, pub Publisher, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   c,
		pub:     pub,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Sweep одним запросом истекает все активные планы с plan_end_time <= now и
// возвращает число затронутых записей. Правило календарного дня для дневных
// планов здесь не применяется, его проверяет шлюз доступа.
// Ошибки кеша и брокера только логируются.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	const op = "sweeper.Sweep"

	start := s.now()
	expired, err := s.repo.ExpireDue(ctx, start)
	s.metrics.Sweep(s.now().Sub(start))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(expired) == 0 {
		s.log.Info("no plans to expire")
		return 0, nil
	}

	keys := make([]string, 0, len(expired))
	for _, u := range expired {
		keys = append(keys, cache.UserKey(u.ID))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cached users", sl.Err(err))
	}

	for _, u := range expired {
		event := subscription.NewPlanEvent(u, subscription.SourceSweep, "", start)
		if err := s.pub.Publish(ctx, rabbitmq.RoutingExpired, event); err != nil {
			s.log.Warn("failed to publish plan event", slog.String("user_id", u.ID), sl.Err(err))
		}
	}

	s.metrics.Expired(subscription.SourceSweep, len(expired))
	s.log.Info("expired plans", slog.Int("count", len(expired)))
	return len(expired), nil
}
