// Package portal собирает HTTP-приложение портала: маршруты, middleware и ресурсы.
package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger-спецификации для /docs.
	_ "github.com/magabrotheeeer/predictor-portal/docs"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/admin/check"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/games/catalog"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/games/proxy"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/users/list"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/users/setplan"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/users/update"
	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/verifyplan"
	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

// Deps зависимости, которые нужны маршрутам.
type Deps struct {
	Verifier       middlewarectx.Verifier
	Admins         middlewarectx.AdminChecker
	Plans          *subscription.Service
	Predictor      proxy.Predictor
	Limiter        *middlewarectx.Limiter
	MaxUploadBytes int64
	AllowedOrigins []string
	Metrics        http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/health", health.New().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Authenticate(d.Verifier, logger))

			r.Get("/dashboard", dashboard.New(logger, d.Plans).ServeHTTP)
			r.Post("/verify-plan", verifyplan.New(logger, d.Plans).ServeHTTP)
			r.Get("/games", catalog.NewList().ServeHTTP)
			r.Get("/games/{id}", catalog.NewRead().ServeHTTP)

			// Страница игры только с действующим планом
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.PlanGate(d.Plans, logger))
				r.Use(middlewarectx.RateLimit(d.Limiter, logger))

				games := proxy.New(logger, d.Predictor, d.MaxUploadBytes)
				r.Post("/games/{id}/predict", games.Predict)
				r.Post("/games/{id}/train", games.Train)
				r.Post("/games/{id}/extract", games.Extract)
			})

			// Административные маршруты
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(d.Admins, logger))

				r.Get("/users", list.New(logger, d.Plans).ServeHTTP)
				r.Post("/users/updateUser", update.New(logger, d.Plans).ServeHTTP)
				r.Post("/users/update-status", setplan.New(logger, d.Plans).ServeHTTP)
				r.Get("/admin/check", check.New().ServeHTTP)
			})
		})
	})

	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
