package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// AccessChecker проверяет план владельца сессии.
type AccessChecker interface {
	CheckAccess(ctx context.Context, id models.Identity) (subscription.Decision, error)
}

// PlanGate пропускает только пользователей с действующим планом. Остальным
// 402 с адресом страницы оплаты.
func PlanGate(checker AccessChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.PlanGate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			id, ok := IdentityFrom(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			decision, err := checker.CheckAccess(r.Context(), id)
			if err != nil {
				log.Error("failed to check access", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			if !decision.Entitled {
				log.Info("access denied", slog.String("user_id", id.ID), slog.String("reason", string(decision.Reason)))
				render.Status(r, http.StatusPaymentRequired)
				render.JSON(w, r, response.PlanRequired(string(decision.Reason)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
