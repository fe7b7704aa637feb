// Package enrollment собирает воркер, который записывает пользователей во
// встречу по заявкам из очереди meetings.enroll.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/session-scheduler/internal/app/wiring"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/rabbitmq"
	enrollmentservice "github.com/magabrotheeeer/session-scheduler/internal/services/enrollment"
)

// App представляет воркер записи участников.
type App struct {
	enrollmentService *enrollmentservice.EnrollmentService
	core              *wiring.Core
	conn              *amqp.Connection
	ch                *amqp.Channel
	metricsAddress    string
	logger            *slog.Logger
}

// New подключается к брокеру и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.ExchangeMeetings, rabbitmq.GetMeetingQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	core, err := wiring.NewCore(ctx, cfg, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to init dependencies: %w", err)
	}
	if err := core.WaitForDB(ctx, 10, 3*time.Second); err != nil {
		core.Close()
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &App{
		enrollmentService: enrollmentservice.NewEnrollmentService(core.Meetings, "enrollment_worker", logger),
		core:              core,
		conn:              conn,
		ch:                ch,
		metricsAddress:    cfg.MetricsAddress,
		logger:            logger,
	}, nil
}

// Run читает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.core.ServeMetrics(ctx, a.metricsAddress)

	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueEnroll, a.enrollmentService.Handler(ctx), a.logger)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.Any("err", err))
		a.close()
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down enrollment worker")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	a.core.Close()
}
