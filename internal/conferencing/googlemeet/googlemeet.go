// Package googlemeet реализует платформу Google Meet поверх Google Calendar API:
// встреча — это событие календаря с конференцией hangoutsMeet.
package googlemeet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

const platform = string(models.PlatformGoogleMeet)

// Adapter работает с одним календарём.
type Adapter struct {
	svc        *calendar.Service
	calendarID string
	log        *slog.Logger
	metrics    *metrics.Metrics
	requestID  func() string
}

// New создаёт адаптер с сервисным аккаунтом из cfg.CredentialsFile.
// Если задан cfg.Subject, аккаунт действует от имени этого пользователя.
func New(ctx context.Context, cfg config.Google, log *slog.Logger, m *metrics.Metrics) (*Adapter, error) {
	const op = "googlemeet.New"
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jwtCfg.Subject = cfg.Subject

	opts := []option.ClientOption{option.WithHTTPClient(jwtCfg.Client(ctx))}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewWithService(svc, cfg.CalendarID, log, m), nil
}

// NewWithService создаёт адаптер поверх готового клиента календаря.
func NewWithService(svc *calendar.Service, calendarID string, log *slog.Logger, m *metrics.Metrics) *Adapter {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Adapter{
		svc:        svc,
		calendarID: calendarID,
		log:        log.With(slog.String("platform", platform)),
		metrics:    m,
		requestID:  func() string { return uuid.NewString() },
	}
}

// Platform реализует conferencing.Adapter
func (a *Adapter) Platform() models.Platform {
	return models.PlatformGoogleMeet
}

// CreateEvent создаёт событие с запросом на конференцию Meet.
// Ссылка может появиться не сразу, тогда JoinURL пустой.
func (a *Adapter) CreateEvent(ctx context.Context, req conferencing.EventRequest) (created *conferencing.CreatedEvent, err error) {
	const op = "googlemeet.CreateEvent"
	defer a.observe("create_event", time.Now(), &err)

	ev := &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       eventTime(req.Start, req.TimeZone),
		End:         eventTime(req.End, req.TimeZone),
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             a.requestID(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	res, err := a.svc.Events.Insert(a.calendarID, ev).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(op, err)
	}

	a.log.Info("calendar event created", slog.String("event_id", res.Id))
	return &conferencing.CreatedEvent{
		RemoteID: res.Id,
		JoinURL:  joinURL(res),
		HostURL:  res.HtmlLink,
	}, nil
}

// GetEvent читает событие календаря.
func (a *Adapter) GetEvent(ctx context.Context, remoteID string) (event *conferencing.RemoteEvent, err error) {
	const op = "googlemeet.GetEvent"
	defer a.observe("get_event", time.Now(), &err)

	res, err := a.svc.Events.Get(a.calendarID, remoteID).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	mapped := toRemoteEvent(res)
	return &mapped, nil
}

// GetAttendees возвращает приглашённых в событие.
func (a *Adapter) GetAttendees(ctx context.Context, remoteID string) ([]models.Attendee, error) {
	ev, err := a.GetEvent(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	return ev.Attendees, nil
}

// AddAttendee добавляет одного участника. Calendar API заменяет список
// участников целиком, поэтому текущий список сначала читается с платформы.
func (a *Adapter) AddAttendee(ctx context.Context, remoteID string, attendee models.Attendee) error {
	current, err := a.GetAttendees(ctx, remoteID)
	if err != nil {
		return err
	}
	return a.AddAttendees(ctx, remoteID, current, []models.Attendee{attendee})
}

// AddAttendees записывает known и added одним PATCH-запросом.
func (a *Adapter) AddAttendees(ctx context.Context, remoteID string, known, added []models.Attendee) (err error) {
	const op = "googlemeet.AddAttendees"
	defer a.observe("add_attendees", time.Now(), &err)

	seen := make(map[string]struct{}, len(known)+len(added))
	attendees := make([]*calendar.EventAttendee, 0, len(known)+len(added))
	for _, list := range [][]models.Attendee{known, added} {
		for _, att := range list {
			if att.Email == "" {
				continue
			}
			key := strings.ToLower(att.Email)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			attendees = append(attendees, &calendar.EventAttendee{Email: att.Email, DisplayName: att.Name})
		}
	}

	_, err = a.svc.Events.Patch(a.calendarID, remoteID, &calendar.Event{Attendees: attendees}).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return classify(op, err)
	}
	a.log.Info("attendees patched", slog.String("event_id", remoteID), slog.Int("added", len(added)))
	return nil
}

// ListEvents возвращает отдельные экземпляры событий в [from, to).
func (a *Adapter) ListEvents(ctx context.Context, from, to time.Time) (events []conferencing.RemoteEvent, err error) {
	const op = "googlemeet.ListEvents"
	defer a.observe("list_events", time.Now(), &err)

	call := a.svc.Events.List(a.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			events = append(events, toRemoteEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return events, nil
}

func (a *Adapter) observe(operation string, started time.Time, errp *error) {
	a.metrics.RemoteCall(platform, operation, started, *errp)
}

func classify(op string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return conferencing.ClassifyStatus(op, gErr.Code, err)
	}
	return conferencing.ClassifyTransport(op, err)
}

func eventTime(t time.Time, tz string) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: tz,
	}
}

func parseEventTime(dt *calendar.EventDateTime) time.Time {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// joinURL возвращает видео-ссылку конференции.
func joinURL(ev *calendar.Event) string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData == nil {
		return ""
	}
	for _, ep := range ev.ConferenceData.EntryPoints {
		if ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func toRemoteEvent(ev *calendar.Event) conferencing.RemoteEvent {
	out := conferencing.RemoteEvent{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		JoinURL:     joinURL(ev),
		HostURL:     ev.HtmlLink,
		Start:       parseEventTime(ev.Start),
		End:         parseEventTime(ev.End),
	}
	for _, att := range ev.Attendees {
		if att.Resource {
			continue
		}
		out.Attendees = append(out.Attendees, models.Attendee{Email: att.Email, Name: att.DisplayName})
	}
	return out
}
