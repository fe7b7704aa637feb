package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/session-scheduler/internal/app/enrollment"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)
	logger.Info("starting enrollment worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := enrollment.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize enrollment worker", sl.Err(err))
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("enrollment worker stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("enrollment worker stopped gracefully")
}
