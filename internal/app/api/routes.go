package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/http/handlers/health"
	"github.com/magabrotheeeer/session-scheduler/internal/http/handlers/meeting/manage"
	"github.com/magabrotheeeer/session-scheduler/internal/http/handlers/meeting/read"
	"github.com/magabrotheeeer/session-scheduler/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/session-scheduler/internal/http/handlers/subscription/eligibility"
	"github.com/magabrotheeeer/session-scheduler/internal/http/middlewarectx"
)

// MeetingService — методы оркестратора, нужные маршрутам.
type MeetingService interface {
	manage.Service
}

// SubscriptionService — методы сервиса подписок, нужные маршрутам.
type SubscriptionService interface {
	eligibility.Service
	create.Service
}

// Services — зависимости обработчиков.
type Services struct {
	Meetings      MeetingService
	Subscriptions SubscriptionService
	Health        health.Checker
	Registry      prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))

		r.Post("/meetings/manage", manage.New(logger, s.Meetings).ServeHTTP)
		r.Get("/meetings/{date}", read.New(logger, s.Meetings).ServeHTTP)

		r.Post("/subscriptions/eligibility", eligibility.New(logger, s.Subscriptions).ServeHTTP)
		r.Post("/subscriptions", create.New(logger, s.Subscriptions).ServeHTTP)
	})

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)
	if s.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
