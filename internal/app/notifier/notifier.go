// Package notifier читает события о планах из RabbitMQ и рассылает письма.
package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/smtp"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
	notifierservice "github.com/magabrotheeeer/predictor-portal/internal/services/notifier"
)

// App обработчик уведомлений.
type App struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	service     *notifierservice.Service
	concurrency int
	logger      *slog.Logger
}

// New подключается к брокеру и объявляет очереди событий о планах.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("notifier: rabbitmq url is required")
	}
	if cfg.SMTPHost == "" {
		return nil, errors.New("notifier: smtp host is required")
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPlanQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	concurrency := max(cfg.Concurrency, 1)
	if err = ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &App{
		conn:        conn,
		ch:          ch,
		service:     notifierservice.NewService(smtp.NewTransport(cfg.SMTP), cfg.PortalURL, logger),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Run читает обе очереди до отмены ctx, затем закрывает канал и соединение.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rabbitmq.Consume(gctx, a.ch, rabbitmq.QueueExpired, a.concurrency, a.service.HandleExpired, a.logger)
	})
	g.Go(func() error {
		return rabbitmq.Consume(gctx, a.ch, rabbitmq.QueueChanged, a.concurrency, a.service.HandleChanged, a.logger)
	})
	err := g.Wait()

	a.logger.Info("notifier shutting down gracefully")
	if closeErr := a.ch.Close(); closeErr != nil {
		a.logger.Error("failed to close channel", slog.Any("err", closeErr))
	}
	if closeErr := a.conn.Close(); closeErr != nil {
		a.logger.Error("failed to close connection", slog.Any("err", closeErr))
	}
	return err
}
