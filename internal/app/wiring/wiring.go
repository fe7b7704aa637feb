// Package wiring собирает общие зависимости процессов: хранилище, кэш,
// адаптеры платформ и сервисы встреч и подписок.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/session-scheduler/internal/cache"
	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/conferencing/googlemeet"
	"github.com/magabrotheeeer/session-scheduler/internal/conferencing/zoom"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
	subservice "github.com/magabrotheeeer/session-scheduler/internal/services/subscription"
	"github.com/magabrotheeeer/session-scheduler/internal/storage/repository"
)

// Core — зависимости, общие для API, планировщика и воркера.
type Core struct {
	DB            *repository.Storage
	Cache         *cache.Cache
	Clock         *civiltime.Clock
	Registry      *prometheus.Registry
	Metrics       *metrics.Metrics
	Adapters      *conferencing.Registry
	Meetings      *meetingservice.MeetingService
	Subscriptions *subservice.SubscriptionService
	log           *slog.Logger
}

// NewCore подключается к базе и redis и собирает сервисы.
// Миграции не применяются: это делает только API.
func NewCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Core, error) {
	const op = "wiring.NewCore"

	clock, err := civiltime.New(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defaults, err := meetingservice.DefaultsFromConfig(cfg.Meetings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	adapters, err := NewAdapters(ctx, cfg, cacheRedis, m, log)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Core{
		DB:            db,
		Cache:         cacheRedis,
		Clock:         clock,
		Registry:      reg,
		Metrics:       m,
		Adapters:      adapters,
		Meetings:      meetingservice.NewMeetingService(db, adapters, clock, defaults, m, log),
		Subscriptions: subservice.NewSubscriptionService(db, clock, cfg.Subscriptions.MaxSpanDays, m, log),
		log:           log,
	}, nil
}

// NewAdapters регистрирует платформы, для которых заданы учётные данные.
// Токен Zoom хранится в redis и переживает перезапуск процессов.
func NewAdapters(ctx context.Context, cfg *config.Config, tokens zoom.TokenCache, m *metrics.Metrics, log *slog.Logger) (*conferencing.Registry, error) {
	var adapters []conferencing.Adapter
	if cfg.Google.CredentialsFile != "" {
		g, err := googlemeet.New(ctx, cfg.Google, log, m)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, g)
	}
	if cfg.Zoom.AccountID != "" {
		adapters = append(adapters, zoom.New(ctx, cfg.Zoom, tokens, log, m))
	}
	if len(adapters) == 0 {
		log.Warn("no conferencing platform configured, meetings cannot be created")
	}
	registry := conferencing.NewRegistry(adapters...)
	log.Info("conferencing platforms configured", slog.Any("platforms", registry.Platforms()))
	return registry, nil
}

// WaitForDB ждёт, пока API применит миграции.
func (c *Core) WaitForDB(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.DB.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		c.log.Warn("database not ready, waiting", sl.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// ServeMetrics отдаёт /metrics на addr до отмены ctx. Пустой addr ничего не запускает.
func (c *Core) ServeMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		c.log.Info("metrics server starting", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("metrics server failed", sl.Err(err))
		}
	}()
}

// Close освобождает соединения с базой и redis.
func (c *Core) Close() {
	if err := c.Cache.Close(); err != nil {
		c.log.Error("failed to close redis", sl.Err(err))
	}
	if err := c.DB.Close(); err != nil {
		c.log.Error("failed to close storage", sl.Err(err))
	}
}
