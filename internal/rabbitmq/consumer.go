package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
)

// ErrPoison сообщение нельзя обработать ни при какой повторной попытке.
// Такое сообщение отклоняется без возврата в очередь.
var ErrPoison = errors.New("poison message")

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// Source канал, из которого читаются сообщения.
type Source interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consume читает очередь queue и обрабатывает до concurrency сообщений
// одновременно. Успех подтверждается, ErrPoison отклоняется, прочие ошибки
// возвращают сообщение в очередь. Возвращает управление после отмены ctx
// или закрытия канала, дождавшись начатых обработчиков.
func Consume(ctx context.Context, src Source, queue string, concurrency int, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.Consume"

	deliveries, err := src.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queue))
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				log.Warn("delivery channel closed")
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				settle(ctx, d, handler, log)
			}(d)
		}
	}
}

func settle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrPoison):
		log.Warn("dropping message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("failed to handle message, requeueing", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
