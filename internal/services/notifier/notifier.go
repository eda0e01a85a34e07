// Package notifier отправляет пользователям письма о событиях их плана:
// истечении и назначении администратором.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/smtp"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/rabbitmq"
)

// Transport соединение с почтовым сервером.
type Transport interface {
	Connect() (smtp.Client, error)
	Sender() string
}

// Service превращает события о планах в письма.
type Service struct {
	transport Transport
	portalURL string
	log       *slog.Logger
}

// NewService создаёт Service. portalURL используется в ссылке на оплату.
func NewService(transport Transport, portalURL string, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		portalURL: strings.TrimRight(portalURL, "/"),
		log:       log,
	}
}

func decode(body []byte) (models.PlanEvent, error) {
	var event models.PlanEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %w", rabbitmq.ErrPoison, err)
	}
	return event, nil
}

// HandleExpired сообщает пользователю, что его план истёк.
func (s *Service) HandleExpired(_ context.Context, body []byte) error {
	const op = "notifier.HandleExpired"

	event, err := decode(body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if event.Email == "" {
		s.log.Warn("plan event without email", slog.String("op", op), slog.String("user_id", event.UserID))
		return nil
	}

	text := fmt.Sprintf("Здравствуйте!\n\nСрок действия вашего плана закончился, доступ к страницам игр закрыт.\n\nПродлить план можно здесь: %s%s",
		s.portalURL, response.PaymentRedirect)
	if err := s.sendEmail([]string{event.Email}, "Ваш план истёк", text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleChanged сообщает пользователю о новом плане.
func (s *Service) HandleChanged(_ context.Context, body []byte) error {
	const op = "notifier.HandleChanged"

	event, err := decode(body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if event.Email == "" {
		s.log.Warn("plan event without email", slog.String("op", op), slog.String("user_id", event.UserID))
		return nil
	}

	until := "без даты окончания"
	if event.PlanEndTime != nil {
		if end, err := time.Parse(time.RFC3339, *event.PlanEndTime); err == nil {
			until = "до " + end.UTC().Format("02.01.2006 15:04 UTC")
		}
	}
	text := fmt.Sprintf("Здравствуйте!\n\nВам назначен план %s, %s.\n\nСтраницы игр: %s",
		event.PlanType, until, s.portalURL)
	if err := s.sendEmail([]string{event.Email}, "Ваш план обновлён", text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from %s: %w", from, err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("rcpt to %s: %w", addr, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	if err = client.Quit(); err != nil {
		s.log.Warn("smtp quit failed", sl.Err(err))
	}

	s.log.Info("email sent", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
