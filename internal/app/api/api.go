// Package api собирает HTTP API администрирования встреч и подписок.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/session-scheduler/internal/app/wiring"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/migrations"
)

// App — HTTP-сервер API.
type App struct {
	server *http.Server
	logger *slog.Logger
	core   *wiring.Core
}

// New применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	core, err := wiring.NewCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(core.DB.DB, cfg.MigrationsPath); err != nil {
		core.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, Services{
		Meetings:      core.Meetings,
		Subscriptions: core.Subscriptions,
		Health:        core.DB,
		Registry:      core.Registry,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		core:   core,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.core.Close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.core.Close()
		return err
	}
}
