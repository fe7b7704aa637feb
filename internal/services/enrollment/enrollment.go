// Package services обрабатывает заявки из очереди meetings.enroll.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// MeetingManager — оркестратор встречи дня.
type MeetingManager interface {
	ManageMeeting(ctx context.Context, req meetingservice.ManageRequest) (*models.Meeting, error)
}

// EnrollmentService записывает пользователей во встречу по заявкам из очереди.
type EnrollmentService struct {
	meetings  MeetingManager
	createdBy string
	log       *slog.Logger
}

// NewEnrollmentService создает новый экземпляр EnrollmentService.
func NewEnrollmentService(meetings MeetingManager, createdBy string, log *slog.Logger) *EnrollmentService {
	return &EnrollmentService{meetings: meetings, createdBy: createdBy, log: log}
}

// Handler возвращает обработчик для rabbitmq.ConsumerMessage.
func (s *EnrollmentService) Handler(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		return s.HandleMessage(ctx, body)
	}
}

// HandleMessage обрабатывает одну заявку. Заявки, которые не станут
// корректными при повторе, подтверждаются с записью в лог; ошибка
// возвращается только для сбоев, после которых заявку стоит повторить.
func (s *EnrollmentService) HandleMessage(ctx context.Context, body []byte) error {
	const op = "services.HandleMessage"
	var req models.EnrollRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Error("malformed enrollment message dropped", slog.String("op", op), sl.Err(err))
		return nil
	}
	log := s.log.With(slog.String("op", op), slog.String("date", req.Date.String()))
	if len(req.UserIDs) == 0 {
		log.Warn("enrollment message without users dropped")
		return nil
	}

	meeting, err := s.meetings.ManageMeeting(ctx, meetingservice.ManageRequest{
		Date:      req.Date,
		Platform:  req.Platform,
		UserIDs:   req.UserIDs,
		Operation: models.OpGetOrCreate,
		CreatedBy: s.createdBy,
	})
	if err != nil {
		if permanent(err) {
			log.Error("enrollment rejected", sl.Err(err))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("enrollment processed",
		slog.Int64("meeting_id", meeting.ID),
		slog.Int("requested", len(req.UserIDs)),
		slog.Int("attendees", len(meeting.Attendees)))
	return nil
}

// permanent сообщает, что повтор заявки даст ту же ошибку.
func permanent(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindNotFound, apperr.KindRemoteAuth:
		return true
	default:
		return false
	}
}
