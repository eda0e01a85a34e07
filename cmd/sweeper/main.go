package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/predictor-portal/internal/app/sweeper"
	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/logger"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	log.Info("starting sweeper", slog.String("env", cfg.Env), slog.Bool("once", *once))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sweeper.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize sweeper", sl.Err(err))
		os.Exit(1)
	}
	defer app.Close()

	if *once {
		if _, err := app.RunOnce(ctx); err != nil {
			app.Close()
			os.Exit(1)
		}
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Error("sweeper stopped with error", sl.Err(err))
		app.Close()
		os.Exit(1)
	}

	log.Info("sweeper stopped gracefully")
}
