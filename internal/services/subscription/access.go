package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

// Reason причина отказа в доступе.
type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonExpired  Reason = "expired"
	ReasonInactive Reason = "inactive"
)

// Decision результат проверки доступа.
type Decision struct {
	Entitled bool   `json:"entitled"`
	Reason   Reason `json:"reason,omitempty"`
}

// Dashboard сохранённая запись пользователя и решение шлюза по ней.
type Dashboard struct {
	User     *models.User
	Decision Decision
}

// CheckAccess проверяет, есть ли у владельца сессии действующий план.
// Истёкший план переводится в Expired и сохраняется до ответа.
func (s *Service) CheckAccess(ctx context.Context, id models.Identity) (Decision, error) {
	const op = "subscription.CheckAccess"

	u, err := s.lookup(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		s.metrics.Access(string(ReasonNotFound))
		return Decision{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	d, _, err := s.gate(ctx, u)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// lookup ищет запись по id сессии. Запись, созданная ранее под другим id
// с тем же email, находится по email.
func (s *Service) lookup(ctx context.Context, id models.Identity) (*models.User, error) {
	u, err := s.getUser(ctx, id.ID)
	if !errors.Is(err, ErrUserNotFound) || id.Email == "" {
		return u, err
	}
	return s.repo.GetUserByEmail(ctx, id.Email)
}

// gate применяет правила истечения к загруженной записи.
func (s *Service) gate(ctx context.Context, u *models.User) (Decision, *models.User, error) {
	if plan.IsExpired(u.PlanState(), s.now()) {
		updated, err := s.save(ctx, u.ID, plan.ApplyExpiry(u.PlanState()), SourceGate, "")
		if err != nil {
			return Decision{}, nil, err
		}
		s.log.Info("plan expired on access", slog.String("user_id", u.ID))
		s.metrics.Expired(SourceGate, 1)
		s.metrics.Access(string(ReasonExpired))
		return Decision{Reason: ReasonExpired}, updated, nil
	}
	if !u.IsActive {
		s.metrics.Access(string(ReasonInactive))
		return Decision{Reason: ReasonInactive}, u, nil
	}
	s.metrics.Access("entitled")
	return Decision{Entitled: true}, u, nil
}

// Dashboard создаёт запись пользователя при первом визите и проверяет его план.
func (s *Service) Dashboard(ctx context.Context, id models.Identity) (*Dashboard, error) {
	const op = "subscription.Dashboard"

	u, err := s.repo.EnsureUser(ctx, models.User{
		ID:    id.ID,
		Email: id.Email,
		Name:  id.DisplayName(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d, u, err := s.gate(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Dashboard{User: u, Decision: d}, nil
}

// VerifyPlan проверяет план пользователя userID от его же имени и
// возвращает запись после проверки.
func (s *Service) VerifyPlan(ctx context.Context, id models.Identity, userID string) (*models.User, error) {
	const op = "subscription.VerifyPlan"

	if id.ID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_, u, err = s.gate(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
