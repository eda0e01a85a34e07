// Package main Predictor Portal API
//
// @title           Predictor Portal API
// @version         1.0
// @description     Портал предсказаний с доступом по плану подписки
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the identity provider token.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/predictor-portal/internal/app/portal"
	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/logger"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
)

func main() {
	// .env нужен только локально, в контейнере переменные заданы напрямую
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	log.Info("starting predictor-portal", slog.String("env", cfg.Env))
	log.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := portal.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("predictor-portal stopped gracefully")
}
