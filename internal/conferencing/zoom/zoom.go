// Package zoom реализует платформу Zoom через REST API v2 и
// Server-to-Server OAuth. Участники добавляются как регистранты встречи.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

const (
	platform = string(models.PlatformZoom)
	pageSize = "300"
)

// Adapter — клиент Zoom API одного аккаунта.
type Adapter struct {
	apiURL     string
	userID     string
	httpClient *http.Client
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// New создаёт адаптер. Токен доступа запрашивается перед первым вызовом
// и переиспользуется до истечения, через cache он общий для всех процессов.
func New(ctx context.Context, cfg config.Zoom, cache TokenCache, log *slog.Logger, m *metrics.Metrics) *Adapter {
	log = log.With(slog.String("platform", platform))
	ts := newCachedTokenSource(ctx, accountCredentials(ctx, cfg), cache, cfg.AccountID, log)
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = 15 * time.Second
	return NewWithClient(client, cfg.APIURL, cfg.UserID, log, m)
}

// NewWithClient создаёт адаптер поверх готового HTTP-клиента, который сам
// добавляет авторизацию.
func NewWithClient(client *http.Client, apiURL, userID string, log *slog.Logger, m *metrics.Metrics) *Adapter {
	if userID == "" {
		userID = "me"
	}
	return &Adapter{
		apiURL:     strings.TrimRight(apiURL, "/"),
		userID:     userID,
		httpClient: client,
		log:        log,
		metrics:    m,
	}
}

// Platform реализует conferencing.Adapter
func (a *Adapter) Platform() models.Platform {
	return models.PlatformZoom
}

// CreateEvent создаёт запланированную встречу с автоматическим одобрением регистрантов.
func (a *Adapter) CreateEvent(ctx context.Context, req conferencing.EventRequest) (created *conferencing.CreatedEvent, err error) {
	const op = "zoom.CreateEvent"
	defer a.observe("create_event", time.Now(), &err)

	body := createMeetingRequest{
		Topic:     req.Title,
		Type:      scheduledMeeting,
		StartTime: req.Start.UTC().Format(time.RFC3339),
		Duration:  int(req.End.Sub(req.Start).Minutes()),
		Timezone:  req.TimeZone,
		Agenda:    req.Description,
		Settings: meetingSettings{
			ApprovalType:                 0,
			JoinBeforeHost:               true,
			RegistrantsEmailNotification: true,
		},
	}
	var res meetingResponse
	if err = a.do(ctx, op, http.MethodPost, "/users/"+url.PathEscape(a.userID)+"/meetings", nil, body, &res); err != nil {
		return nil, err
	}

	id := strconv.FormatInt(res.ID, 10)
	a.log.Info("zoom meeting created", slog.String("meeting_id", id))
	return &conferencing.CreatedEvent{
		RemoteID: id,
		JoinURL:  res.JoinURL,
		HostURL:  res.StartURL,
	}, nil
}

// GetEvent читает встречу вместе с регистрантами.
func (a *Adapter) GetEvent(ctx context.Context, remoteID string) (event *conferencing.RemoteEvent, err error) {
	const op = "zoom.GetEvent"
	defer a.observe("get_event", time.Now(), &err)

	var res meetingResponse
	if err = a.do(ctx, op, http.MethodGet, "/meetings/"+url.PathEscape(remoteID), nil, nil, &res); err != nil {
		return nil, err
	}
	mapped := toRemoteEvent(res)
	return &mapped, nil
}

// GetAttendees возвращает регистрантов встречи.
func (a *Adapter) GetAttendees(ctx context.Context, remoteID string) (attendees []models.Attendee, err error) {
	const op = "zoom.GetAttendees"
	defer a.observe("get_attendees", time.Now(), &err)

	query := url.Values{"page_size": {pageSize}}
	for {
		var page listRegistrantsResponse
		if err = a.do(ctx, op, http.MethodGet, "/meetings/"+url.PathEscape(remoteID)+"/registrants", query, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Registrants {
			attendees = append(attendees, models.Attendee{
				Email: r.Email,
				Name:  strings.TrimSpace(r.FirstName + " " + r.LastName),
			})
		}
		if page.NextPageToken == "" {
			return attendees, nil
		}
		query.Set("next_page_token", page.NextPageToken)
	}
}

// AddAttendee регистрирует участника на встречу.
func (a *Adapter) AddAttendee(ctx context.Context, remoteID string, attendee models.Attendee) (err error) {
	const op = "zoom.AddAttendee"
	defer a.observe("add_attendee", time.Now(), &err)

	first, last := splitName(attendee)
	body := registrant{Email: attendee.Email, FirstName: first, LastName: last}
	return a.do(ctx, op, http.MethodPost, "/meetings/"+url.PathEscape(remoteID)+"/registrants", nil, body, nil)
}

// ListEvents возвращает запланированные встречи, начинающиеся в [from, to).
func (a *Adapter) ListEvents(ctx context.Context, from, to time.Time) (events []conferencing.RemoteEvent, err error) {
	const op = "zoom.ListEvents"
	defer a.observe("list_events", time.Now(), &err)

	query := url.Values{
		"type":      {"scheduled"},
		"page_size": {pageSize},
		"from":      {from.UTC().Format(time.DateOnly)},
		"to":        {to.UTC().Format(time.DateOnly)},
	}
	for {
		var page listMeetingsResponse
		if err = a.do(ctx, op, http.MethodGet, "/users/"+url.PathEscape(a.userID)+"/meetings", query, nil, &page); err != nil {
			return nil, err
		}
		for _, m := range page.Meetings {
			ev := toRemoteEvent(m)
			if ev.Start.Before(from) || !ev.Start.Before(to) {
				continue
			}
			events = append(events, ev)
		}
		if page.NextPageToken == "" {
			return events, nil
		}
		query.Set("next_page_token", page.NextPageToken)
	}
}

func (a *Adapter) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := a.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do выполняет запрос и декодирует ответ в out, если он не nil.
func (a *Adapter) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	req, err := a.newRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return conferencing.ClassifyTransport(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)
		cause := fmt.Errorf("zoom api: status %d code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		return conferencing.ClassifyStatus(op, resp.StatusCode, cause)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (a *Adapter) observe(operation string, started time.Time, errp *error) {
	a.metrics.RemoteCall(platform, operation, started, *errp)
}

func toRemoteEvent(m meetingResponse) conferencing.RemoteEvent {
	start, _ := time.Parse(time.RFC3339, m.StartTime)
	return conferencing.RemoteEvent{
		ID:          strconv.FormatInt(m.ID, 10),
		Summary:     m.Topic,
		Description: m.Agenda,
		JoinURL:     m.JoinURL,
		HostURL:     m.StartURL,
		Start:       start,
		End:         start.Add(time.Duration(m.Duration) * time.Minute),
	}
}

// splitName делит имя на first/last; Zoom требует непустое first_name.
func splitName(a models.Attendee) (string, string) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		local, _, _ := strings.Cut(a.Email, "@")
		return local, ""
	}
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}
