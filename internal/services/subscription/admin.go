package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

// UpdateRequest частичное изменение плана администратором.
// Пустые строки считаются отсутствующими полями.
type UpdateRequest struct {
	UserID      string
	PlanType    *string
	PlanEndTime *string
	IsActive    *bool
}

func given(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// UpdateUser применяет изменение плана от имени администратора actor.
//
// IsActive=false переводит план в Expired. Новый тип плана назначается через
// ApplyPlanChange. Только дата окончания или IsActive=true продлевают текущий
// тип плана. Пустой запрос возвращает запись без записи в хранилище.
func (s *Service) UpdateUser(ctx context.Context, actor string, req UpdateRequest) (*models.User, error) {
	const op = "subscription.UpdateUser"

	u, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	current := u.PlanState()

	var next plan.State
	switch {
	case req.IsActive != nil && !*req.IsActive:
		next = plan.ApplyExpiry(current)
	case given(req.PlanType):
		next, err = plan.ApplyPlanChange(current, *req.PlanType, req.PlanEndTime, s.now())
	case given(req.PlanEndTime) || (req.IsActive != nil && *req.IsActive):
		if u.PlanType == nil || *u.PlanType == plan.Expired {
			return nil, fmt.Errorf("%s: %w", op, ErrPlanTypeRequired)
		}
		next, err = plan.ApplyPlanChange(current, string(*u.PlanType), req.PlanEndTime, s.now())
	default:
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.save(ctx, u.ID, next, SourceAdmin, actor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.audit(updated, actor)
	return updated, nil
}

// SetPlan назначает пользователю план planType. Для Expired план снимается.
func (s *Service) SetPlan(ctx context.Context, actor, userID, planType string, planEndTime *string) (*models.User, error) {
	const op = "subscription.SetPlan"

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	next, err := plan.ApplyPlanChange(u.PlanState(), planType, planEndTime, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.save(ctx, u.ID, next, SourceAdmin, actor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.audit(updated, actor)
	return updated, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "subscription.ListUsers"

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (s *Service) audit(u *models.User, actor string) {
	planType := "none"
	if u.PlanType != nil {
		planType = string(*u.PlanType)
	}
	if planType == string(plan.Expired) {
		s.metrics.Expired(SourceAdmin, 1)
	}
	s.metrics.AdminUpdate(planType)
	s.log.Info("plan updated by admin",
		slog.String("user_id", u.ID),
		slog.String("plan_type", planType),
		slog.Bool("is_active", u.IsActive),
		slog.String("actor", actor),
	)
}
