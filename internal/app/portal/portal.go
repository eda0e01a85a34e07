package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/predictor-portal/internal/auth"
	"github.com/magabrotheeeer/predictor-portal/internal/cache"
	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/identity"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
	"github.com/magabrotheeeer/predictor-portal/internal/migrations"
	"github.com/magabrotheeeer/predictor-portal/internal/predictor"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
	"github.com/magabrotheeeer/predictor-portal/internal/storage/repository"
)

// App HTTP-сервер портала и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	closers []io.Closer
}

// New подключает хранилище, кеш и брокер, применяет миграции и собирает роутер.
// Пустой адрес redis или URL брокера отключают соответствующий ресурс.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, err
	}
	if err = repository.WaitReady(ctx, db, 10, 3*time.Second); err != nil {
		a.close()
		return nil, err
	}

	var userCache subscription.Cache = cache.Nop{}
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		a.closers = append(a.closers, redisCache)
		userCache = redisCache
	} else {
		logger.Warn("redis address is empty, user cache disabled")
	}

	var publisher subscription.Publisher = rabbitmq.Nop{}
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.closers = append(a.closers, conn)
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPlanQueues())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.closers = append(a.closers, ch)
		publisher = rabbitmq.NewPublisher(ch)
	} else {
		logger.Warn("rabbitmq url is empty, plan events disabled")
	}

	verifier, err := identity.NewVerifier(cfg.Identity, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		a.close()
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	plans := subscription.NewService(db, userCache, publisher, m, logger, cfg.UserTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Verifier:       verifier,
		Admins:         auth.NewAdminPolicy(cfg.AdminEmails),
		Plans:          plans,
		Predictor:      predictor.NewClient(cfg.Predictor, m),
		Limiter:        middlewarectx.NewLimiter(cfg.RPS, cfg.Burst),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// WriteTimeout должен покрывать ожидание сервиса предсказаний.
	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP + cfg.Predictor.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close закрывает ресурсы в обратном порядке открытия.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}
