// Package dashboard обработчик главной страницы кабинета.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// Service создаёт запись пользователя и проверяет его план.
type Service interface {
	Dashboard(ctx context.Context, id models.Identity) (*subscription.Dashboard, error)
}

// Handler обрабатывает GET /api/dashboard.
type Handler struct {
	log     *slog.Logger
	service Service
}

// View тело ответа дашборда.
type View struct {
	User     *models.User  `json:"user"`
	Entitled bool          `json:"entitled"`
	Reason   string        `json:"reason,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
	Games    []models.Game `json:"games"`
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Дашборд пользователя
// @Description При первом визите создаёт запись пользователя без плана, затем проверяет план.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=View}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/dashboard [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		log.Error("identity not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	dash, err := h.service.Dashboard(r.Context(), id)
	if err != nil {
		log.Error("failed to load dashboard", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load dashboard"))
		return
	}

	view := View{
		User:     dash.User,
		Entitled: dash.Decision.Entitled,
		Reason:   string(dash.Decision.Reason),
		Games:    models.Games,
	}
	if !view.Entitled {
		view.Redirect = response.PaymentRedirect
	}
	render.JSON(w, r, response.StatusOKWithData(view))
}
