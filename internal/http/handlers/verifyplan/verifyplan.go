// Package verifyplan обработчик явной проверки плана пользователем.
package verifyplan

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
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// Request тело запроса.
type Request struct {
	UserID string `json:"userId" validate:"required"`
}

// Service проверяет план пользователя.
type Service interface {
	VerifyPlan(ctx context.Context, id models.Identity, userID string) (*models.User, error)
}

// Handler обрабатывает POST /api/verify-plan.
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
// @Summary Проверить план
// @Description Применяет правила истечения к записи текущего пользователя и возвращает её.
// @Tags Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Идентификатор пользователя"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/verify-plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.verifyplan"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.IdentityFrom(r.Context())
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

	user, err := h.service.VerifyPlan(r.Context(), id, req.UserID)
	switch {
	case errors.Is(err, subscription.ErrForbidden):
		log.Warn("attempt to verify another user's plan", slog.String("user_id", id.ID), slog.String("target", req.UserID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	case errors.Is(err, subscription.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case err != nil:
		log.Error("failed to verify plan", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not verify plan"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(user))
}
