package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

// EnrollmentRepository — методы хранилища для записи участников.
type EnrollmentRepository interface {
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	AddAttendees(ctx context.Context, meetingID int64, userIDs []string) (int, error)
}

// Enroller добавляет во встречу только новых участников. Новизна определяется
// по локальному списку, удалённый список не перечитывается.
type Enroller struct {
	repo     EnrollmentRepository
	adapters *conferencing.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewEnroller создает новый экземпляр Enroller.
func NewEnroller(repo EnrollmentRepository, adapters *conferencing.Registry, m *metrics.Metrics, log *slog.Logger) *Enroller {
	return &Enroller{repo: repo, adapters: adapters, metrics: m, log: log}
}

// Enroll дописывает в meeting пользователей userIDs, которых там ещё нет.
// Ошибки отдельных участников логируются и не прерывают пакет; наружу
// возвращаются только сбои хранилища и отказ платформы в доступе.
func (e *Enroller) Enroll(ctx context.Context, meeting *models.Meeting, userIDs []string) (*models.Meeting, error) {
	const op = "services.Enroll"
	log := e.log.With(slog.String("op", op), slog.Int64("meeting_id", meeting.ID))

	candidates := e.newUserIDs(meeting, userIDs)
	if len(candidates) == 0 {
		return meeting, nil
	}

	added, fromGuests, err := e.resolve(ctx, meeting, candidates, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(added) == 0 && len(fromGuests) == 0 {
		return meeting, nil
	}

	var enrolled []models.Attendee
	if len(added) > 0 {
		enrolled, err = e.addRemote(ctx, meeting, added, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(enrolled) == 0 && len(fromGuests) == 0 {
		return meeting, nil
	}

	ids := make([]string, 0, len(enrolled)+len(fromGuests))
	for _, a := range enrolled {
		ids = append(ids, a.UserID)
	}
	for _, a := range fromGuests {
		ids = append(ids, a.UserID)
	}
	if _, err = e.repo.AddAttendees(ctx, meeting.ID, ids); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	linkGuests(meeting, fromGuests)
	meeting.Attendees = append(meeting.Attendees, enrolled...)
	if len(fromGuests) > 0 {
		log.Info("guests linked to users", slog.Int("linked", len(fromGuests)))
	}
	if len(enrolled) == 0 {
		return meeting, nil
	}
	e.metrics.AttendeesEnrolled(string(meeting.Platform), len(enrolled))
	log.Info("attendees enrolled", slog.Int("added", len(enrolled)))
	return meeting, nil
}

// newUserIDs убирает пустые id, повторы и тех, кто уже записан.
func (e *Enroller) newUserIDs(meeting *models.Meeting, userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	var out []string
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if meeting.HasAttendee(id, "") {
			continue
		}
		out = append(out, id)
	}
	return out
}

// resolve возвращает новых участников и пользователей, чей email уже есть
// во встрече как гость. Вторых на платформу заново не добавляют.
func (e *Enroller) resolve(ctx context.Context, meeting *models.Meeting, ids []string, log *slog.Logger) ([]models.Attendee, []models.Attendee, error) {
	users, err := e.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.UUID] = u
	}

	var out, fromGuests []models.Attendee
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			log.Warn("attendee user not found, skipping", slog.String("user_id", id))
			continue
		}
		if strings.TrimSpace(u.Email) == "" {
			log.Warn("attendee has no email, skipping", slog.String("user_id", id))
			continue
		}
		a := models.Attendee{UserID: u.UUID, Email: u.Email, Name: u.Name}
		if meeting.HasAttendee("", u.Email) {
			if isGuest(meeting, u.Email) {
				fromGuests = append(fromGuests, a)
			}
			continue
		}
		out = append(out, a)
	}
	return out, fromGuests, nil
}

func isGuest(meeting *models.Meeting, email string) bool {
	for _, a := range meeting.Attendees {
		if a.UserID == "" && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

// linkGuests проставляет UserID гостям, которых сопоставили с пользователями.
func linkGuests(meeting *models.Meeting, linked []models.Attendee) {
	for _, l := range linked {
		for i := range meeting.Attendees {
			a := &meeting.Attendees[i]
			if a.UserID == "" && strings.EqualFold(a.Email, l.Email) {
				a.UserID = l.UserID
				if a.Name == "" {
					a.Name = l.Name
				}
				break
			}
		}
	}
}

// addRemote добавляет участников на платформе и возвращает тех, кого удалось добавить.
func (e *Enroller) addRemote(ctx context.Context, meeting *models.Meeting, added []models.Attendee, log *slog.Logger) ([]models.Attendee, error) {
	if meeting.RemoteEventID == "" {
		return added, nil
	}
	adapter, err := e.adapters.Get(meeting.Platform)
	if err != nil {
		log.Error("platform not configured, attendees stored locally only", sl.Err(err))
		return added, nil
	}

	if batch, ok := adapter.(conferencing.BatchAttendeeAdder); ok {
		err = batch.AddAttendees(ctx, meeting.RemoteEventID, meeting.Attendees, added)
		switch {
		case err == nil:
			return added, nil
		case apperr.Is(err, apperr.KindRemoteAuth):
			return nil, err
		default:
			log.Error("batch attendee add failed", slog.Int("attendees", len(added)), sl.Err(err))
			return nil, nil
		}
	}

	enrolled := make([]models.Attendee, 0, len(added))
	for _, a := range added {
		err = adapter.AddAttendee(ctx, meeting.RemoteEventID, a)
		if apperr.Is(err, apperr.KindRemoteAuth) {
			return nil, err
		}
		if err != nil {
			log.Warn("failed to add attendee", slog.String("user_id", a.UserID), sl.Err(err))
			continue
		}
		enrolled = append(enrolled, a)
	}
	return enrolled, nil
}
