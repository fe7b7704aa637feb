// Package scheduler собирает процесс, который каждый день готовит встречу для подписчиков.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/session-scheduler/internal/app/wiring"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/session-scheduler/internal/services/scheduler"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	core             *wiring.Core
	conn             *amqp.Connection
	ch               *amqp.Channel
	metricsAddress   string
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.ExchangeMeetings, rabbitmq.GetMeetingQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	core, err := wiring.NewCore(ctx, cfg, logger)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to init dependencies: %w", err)
	}

	if err := core.WaitForDB(ctx, 10, 3*time.Second); err != nil {
		core.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	schedulerService := schedulerservice.NewSchedulerService(
		core.Subscriptions, core.Meetings, core.Clock,
		cfg.Scheduler.Interval, cfg.Scheduler.CreatedBy, logger,
	)

	return &App{
		schedulerService: schedulerService,
		core:             core,
		conn:             conn,
		ch:               ch,
		metricsAddress:   cfg.MetricsAddress,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.core.ServeMetrics(ctx, a.metricsAddress)
	a.schedulerService.Run(ctx, a.ch)

	a.logger.Info("shutting down scheduler service")
	closeResources(a.ch, a.conn, a.logger)
	a.core.Close()
	return nil
}
