package googlemeet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	a := NewWithService(svc, "primary", sl.Discard(), nil)
	a.requestID = func() string { return "req-1" }
	return a
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestAdapter_CreateEvent(t *testing.T) {
	start := time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)
	var got calendar.Event

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		writeJSON(t, w, calendar.Event{
			Id:          "evt-1",
			HangoutLink: "https://meet.google.com/abc-defg-hij",
			HtmlLink:    "https://calendar.google.com/event?eid=1",
		})
	})

	res, err := a.CreateEvent(context.Background(), conferencing.EventRequest{
		Start: start, End: start.Add(time.Hour), Title: "Daily Live Session",
		Description: "[daily-session]", TimeZone: "Asia/Kolkata",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", res.RemoteID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", res.JoinURL)

	require.NotNil(t, got.ConferenceData)
	assert.Equal(t, "req-1", got.ConferenceData.CreateRequest.RequestId)
	assert.Equal(t, "hangoutsMeet", got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
	assert.Equal(t, "2025-06-10T01:30:00Z", got.Start.DateTime)
	assert.Equal(t, "Asia/Kolkata", got.Start.TimeZone)
}

func TestAdapter_CreateEvent_PendingConference(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, calendar.Event{Id: "evt-2"})
	})

	res, err := a.CreateEvent(context.Background(), conferencing.EventRequest{Start: time.Now(), End: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, res.JoinURL)
}

func TestAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: apperr.KindRemoteAuth},
		{name: "forbidden", status: http.StatusForbidden, want: apperr.KindRemoteAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, want: apperr.KindRemoteTransient},
		{name: "server error", status: http.StatusServiceUnavailable, want: apperr.KindRemoteTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"x"}}`, tt.status)
			})

			_, err := a.CreateEvent(context.Background(), conferencing.EventRequest{Start: time.Now(), End: time.Now()})
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestAdapter_AddAttendees_SinglePatch(t *testing.T) {
	calls := 0
	var patched calendar.Event

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/calendars/primary/events/evt-1", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		writeJSON(t, w, calendar.Event{Id: "evt-1"})
	})

	known := []models.Attendee{{Email: "a@example.com", Name: "Asha"}, {Email: "guest@elsewhere.org"}}
	added := []models.Attendee{{Email: "b@example.com", Name: "Ravi"}, {Email: "A@Example.com"}}
	require.NoError(t, a.AddAttendees(context.Background(), "evt-1", known, added))

	assert.Equal(t, 1, calls)
	require.Len(t, patched.Attendees, 3)
	assert.Equal(t, "a@example.com", patched.Attendees[0].Email)
	assert.Equal(t, "guest@elsewhere.org", patched.Attendees[1].Email)
	assert.Equal(t, "b@example.com", patched.Attendees[2].Email)
}

func TestAdapter_ListEvents(t *testing.T) {
	from := time.Date(2025, 6, 9, 18, 30, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "2025-06-09T18:30:00Z", r.URL.Query().Get("timeMin"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		writeJSON(t, w, calendar.Events{Items: []*calendar.Event{
			{
				Id: "evt-1", Summary: "Daily Live Session", Description: "[daily-session]",
				ConferenceData: &calendar.ConferenceData{EntryPoints: []*calendar.EntryPoint{
					{EntryPointType: "phone", Uri: "tel:+1"},
					{EntryPointType: "video", Uri: "https://meet.google.com/xyz"},
				}},
				Start:     &calendar.EventDateTime{DateTime: "2025-06-10T07:00:00+05:30"},
				Attendees: []*calendar.EventAttendee{{Email: "a@example.com"}, {Email: "room@resource", Resource: true}},
			},
			{Id: "evt-2", Status: "cancelled"},
		}})
	})

	events, err := a.ListEvents(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "https://meet.google.com/xyz", events[0].JoinURL)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)))
	assert.Equal(t, []models.Attendee{{Email: "a@example.com"}}, events[0].Attendees)
}

func TestAdapter_GetAttendees(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(t, w, calendar.Event{Id: "evt-1", Attendees: []*calendar.EventAttendee{
			{Email: "a@example.com", DisplayName: "Asha"},
		}})
	})

	got, err := a.GetAttendees(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, []models.Attendee{{Email: "a@example.com", Name: "Asha"}}, got)
}
