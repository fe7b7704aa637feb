package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	"github.com/magabrotheeeer/session-scheduler/internal/rabbitmq"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// SubscriberSource возвращает пользователей с активной подпиской на дату.
type SubscriberSource interface {
	ActiveSubscriberIDs(ctx context.Context, d civil.Date) ([]string, error)
}

// MeetingManager — оркестратор встречи дня.
type MeetingManager interface {
	ManageMeeting(ctx context.Context, req meetingservice.ManageRequest) (*models.Meeting, error)
}

// SchedulerService по расписанию готовит встречу текущего дня для всех
// активных подписчиков и сообщает о ней в обменник meetings.
type SchedulerService struct {
	subscribers SubscriberSource
	meetings    MeetingManager
	clock       *civiltime.Clock
	interval    time.Duration
	createdBy   string
	log         *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(subscribers SubscriberSource, meetings MeetingManager, clock *civiltime.Clock,
	interval time.Duration, createdBy string, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		subscribers: subscribers,
		meetings:    meetings,
		clock:       clock,
		interval:    interval,
		createdBy:   createdBy,
		log:         log,
	}
}

// Run готовит встречу сразу и затем каждые interval, пока не отменён ctx.
// Повторные запуски в течение дня только дописывают новых подписчиков.
func (s *SchedulerService) Run(ctx context.Context, ch rabbitmq.Publisher) {
	s.runDaily(ctx, ch)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runDaily(ctx, ch)
		}
	}
}

func (s *SchedulerService) runDaily(ctx context.Context, ch rabbitmq.Publisher) {
	if err := s.PrepareDay(ctx, ch, s.clock.Today()); err != nil {
		s.log.Error("failed to prepare daily meeting", sl.Err(err))
	}
}

// PrepareDay создаёт или обновляет встречу даты d и публикует meetings.ready.
// Дни без активных подписчиков пропускаются.
func (s *SchedulerService) PrepareDay(ctx context.Context, ch rabbitmq.Publisher, d civil.Date) error {
	const op = "services.PrepareDay"
	log := s.log.With(slog.String("op", op), slog.String("date", d.String()))
	log.Info("starting daily meeting preparation")

	ids, err := s.subscribers.ActiveSubscriberIDs(ctx, d)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		log.Info("no active subscribers, skipping")
		return nil
	}
	log.Info("found active subscribers", slog.Int("count", len(ids)))

	meeting, err := s.meetings.ManageMeeting(ctx, meetingservice.ManageRequest{
		Date:      d,
		UserIDs:   ids,
		Operation: models.OpGetOrCreate,
		CreatedBy: s.createdBy,
		IsDefault: true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.MeetingReady{
		MeetingID:   meeting.ID,
		Date:        d,
		Platform:    meeting.Platform,
		MeetingLink: meeting.MeetingLink,
		Attendees:   len(meeting.Attendees),
	}
	if ch == nil {
		return nil
	}
	if err = rabbitmq.PublishMessage(ch, rabbitmq.ExchangeMeetings, rabbitmq.RoutingKeyReady, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
