// Package update обработчик частичного изменения плана администратором.
package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// Request тело запроса. Все поля кроме userId необязательны.
type Request struct {
	UserID      string  `json:"userId" validate:"required"`
	PlanType    *string `json:"planType,omitempty"`
	PlanEndTime *string `json:"planEndTime,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// Service меняет план пользователя.
type Service interface {
	UpdateUser(ctx context.Context, actor string, req subscription.UpdateRequest) (*models.User, error)
}

// Handler обрабатывает POST /api/users/updateUser.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить план пользователя
// @Description isActive=false снимает план, planType назначает новый, planEndTime задаёт дату окончания.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Изменения"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/users/updateUser [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	admin, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		errors.As(err, &verrs)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), admin.Email, subscription.UpdateRequest{
		UserID:      req.UserID,
		PlanType:    req.PlanType,
		PlanEndTime: req.PlanEndTime,
		IsActive:    req.IsActive,
	})
	if err != nil {
		status, msg := ErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("failed to update user", sl.Err(err))
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(user))
}

// ErrorStatus сопоставляет ошибку изменения плана HTTP-статусу и сообщению.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, subscription.ErrUserNotFound):
		return http.StatusNotFound, "target user not found"
	case errors.Is(err, plan.ErrInvalidPlanType):
		return http.StatusBadRequest, "invalid planType provided"
	case errors.Is(err, plan.ErrInvalidDate):
		return http.StatusBadRequest, "invalid planEndTime provided"
	case errors.Is(err, subscription.ErrPlanTypeRequired):
		return http.StatusBadRequest, "planType is required for a user without an active plan"
	default:
		return http.StatusInternalServerError, "failed to update user"
	}
}
