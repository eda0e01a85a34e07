// Package sweeper запускает пакетное истечение планов по расписанию.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/predictor-portal/internal/cache"
	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
	sweeperservice "github.com/magabrotheeeer/predictor-portal/internal/services/sweeper"
	"github.com/magabrotheeeer/predictor-portal/internal/storage/repository"
)

// Sweeper один прогон истечения.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler вызывает Sweeper по cron-расписанию.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	logger   *slog.Logger
}

// NewScheduler создаёт Scheduler. Паника внутри прогона перехватывается cron.
func NewScheduler(sweeper Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// RunOnce выполняет один прогон и логирует результат.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", sl.Err(err))
		return 0, err
	}
	s.logger.Info("sweep finished", slog.Int("expired", n))
	return n, nil
}

// Run выполняет прогон сразу, затем по расписанию до отмены ctx.
// Ждёт завершения текущего прогона перед возвратом.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("sweeper.Run: invalid schedule %q: %w", s.schedule, err)
	}
	s.logger.Info("scheduled sweep job", slog.String("schedule", s.schedule))

	_, _ = s.RunOnce(ctx)
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("shutting down sweeper")
	<-s.cron.Stop().Done()
	return nil
}

// App планировщик вместе с его ресурсами.
type App struct {
	*Scheduler
	metricsServer *http.Server
	logger        *slog.Logger
	closers       []io.Closer
}

// New подключает хранилище, кеш и брокер и собирает Scheduler.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.closers = append(a.closers, db)

	if err = repository.WaitReady(ctx, db, 10, 3*time.Second); err != nil {
		a.Close()
		return nil, err
	}

	var userCache sweeperservice.Cache = cache.Nop{}
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		a.closers = append(a.closers, redisCache)
		userCache = redisCache
	}

	var publisher sweeperservice.Publisher = rabbitmq.Nop{}
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.closers = append(a.closers, conn)
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPlanQueues())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.closers = append(a.closers, ch)
		publisher = rabbitmq.NewPublisher(ch)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	service := sweeperservice.NewService(db, userCache, publisher, m, logger)
	a.Scheduler = NewScheduler(service, cfg.Schedule, logger)
	return a, nil
}

// Run запускает сервер метрик, если он настроен, и планировщик.
func (a *App) Run(ctx context.Context) error {
	if a.metricsServer != nil {
		go func() {
			a.logger.Info("metrics server starting on", slog.String("address", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", sl.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.metricsServer.Shutdown(shutdownCtx)
		}()
	}
	return a.Scheduler.Run(ctx)
}

// Close закрывает ресурсы в обратном порядке открытия.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}
