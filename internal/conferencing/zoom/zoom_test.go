package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/session-scheduler/internal/cache"
	"github.com/magabrotheeeer/session-scheduler/internal/conferencing"
	"github.com/magabrotheeeer/session-scheduler/internal/config"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

// fakeZoom — минимальная реализация OAuth и Meetings API.
type fakeZoom struct {
	t           *testing.T
	tokenCalls  atomic.Int32
	tokenStatus int
	api         http.HandlerFunc
}

func (f *fakeZoom) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/token" {
		f.tokenCalls.Add(1)
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "account_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(f.t, "acc-1", r.PostForm.Get("account_id"))
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "cid", user)
		assert.Equal(f.t, "secret", pass)
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"reason":"Invalid client_id or client_secret","error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
		return
	}
	assert.Equal(f.t, "Bearer tok-1", r.Header.Get("Authorization"))
	f.api(w, r)
}

func newFakeZoom(t *testing.T, api http.HandlerFunc) (*fakeZoom, config.Zoom) {
	t.Helper()
	f := &fakeZoom{t: t, api: api}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, config.Zoom{
		AccountID:    "acc-1",
		ClientID:     "cid",
		ClientSecret: "secret",
		UserID:       "me",
		APIURL:       srv.URL + "/v2",
		TokenURL:     srv.URL + "/oauth/token",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestAdapter_CreateEvent(t *testing.T) {
	start := time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)
	var got createMeetingRequest

	_, cfg := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/users/me/meetings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusCreated, meetingResponse{
			ID: 85746065432, JoinURL: "https://zoom.us/j/85746065432", StartURL: "https://zoom.us/s/85746065432",
		})
	})
	a := New(context.Background(), cfg, nil, sl.Discard(), nil)

	res, err := a.CreateEvent(context.Background(), conferencing.EventRequest{
		Start: start, End: start.Add(45 * time.Minute), Title: "Daily Live Session",
		Description: "[daily-session]", TimeZone: "Asia/Kolkata",
	})
	require.NoError(t, err)
	assert.Equal(t, "85746065432", res.RemoteID)
	assert.Equal(t, "https://zoom.us/j/85746065432", res.JoinURL)
	assert.Equal(t, "https://zoom.us/s/85746065432", res.HostURL)

	assert.Equal(t, scheduledMeeting, got.Type)
	assert.Equal(t, "2025-06-10T01:30:00Z", got.StartTime)
	assert.Equal(t, 45, got.Duration)
	assert.Equal(t, 0, got.Settings.ApprovalType)
	assert.Equal(t, "[daily-session]", got.Agenda)
}

func TestAdapter_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: apperr.KindRemoteAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, want: apperr.KindRemoteTransient},
		{name: "bad gateway", status: http.StatusBadGateway, want: apperr.KindRemoteTransient},
		{name: "not found", status: http.StatusNotFound, want: apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cfg := newFakeZoom(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.status, apiError{Code: 124, Message: "failure"})
			})
			a := New(context.Background(), cfg, nil, sl.Discard(), nil)

			_, err := a.GetEvent(context.Background(), "1")
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestAdapter_TokenRejectedIsAuthError(t *testing.T) {
	f, cfg := newFakeZoom(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("api must not be called without a token")
	})
	f.tokenStatus = http.StatusBadRequest
	a := New(context.Background(), cfg, nil, sl.Discard(), nil)

	_, err := a.CreateEvent(context.Background(), conferencing.EventRequest{Start: time.Now(), End: time.Now().Add(time.Hour)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindRemoteAuth, apperr.KindOf(err))
}

func TestAdapter_TokenSharedThroughCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)

	f, cfg := newFakeZoom(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, meetingResponse{ID: 1, StartTime: "2025-06-10T01:30:00Z", Duration: 60})
	})

	first := New(context.Background(), cfg, c, sl.Discard(), nil)
	_, err = first.GetEvent(context.Background(), "1")
	require.NoError(t, err)

	second := New(context.Background(), cfg, c, sl.Discard(), nil)
	_, err = second.GetEvent(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAdapter_AddAttendeeAndList(t *testing.T) {
	var posted registrant

	_, cfg := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/meetings/42/registrants":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			writeJSON(t, w, http.StatusCreated, map[string]any{"registrant_id": "r1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/meetings/42/registrants":
			if r.URL.Query().Get("next_page_token") == "" {
				writeJSON(t, w, http.StatusOK, listRegistrantsResponse{
					NextPageToken: "p2",
					Registrants:   []registrant{{Email: "a@example.com", FirstName: "Asha", LastName: "Rao"}},
				})
				return
			}
			writeJSON(t, w, http.StatusOK, listRegistrantsResponse{
				Registrants: []registrant{{Email: "b@example.com", FirstName: "Ravi"}},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	a := New(context.Background(), cfg, nil, sl.Discard(), nil)

	require.NoError(t, a.AddAttendee(context.Background(), "42", models.Attendee{Email: "c@example.com", Name: "Chitra Devi Nair"}))
	assert.Equal(t, registrant{Email: "c@example.com", FirstName: "Chitra", LastName: "Devi Nair"}, posted)

	got, err := a.GetAttendees(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []models.Attendee{
		{Email: "a@example.com", Name: "Asha Rao"},
		{Email: "b@example.com", Name: "Ravi"},
	}, got)
}

func TestAdapter_ListEvents_FiltersWindow(t *testing.T) {
	from := time.Date(2025, 6, 9, 18, 30, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	_, cfg := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/users/me/meetings", r.URL.Path)
		assert.Equal(t, "scheduled", r.URL.Query().Get("type"))
		assert.Equal(t, "2025-06-09", r.URL.Query().Get("from"))
		writeJSON(t, w, http.StatusOK, listMeetingsResponse{Meetings: []meetingResponse{
			{ID: 1, Topic: "Daily [daily-session]", StartTime: "2025-06-10T01:30:00Z", Duration: 60, JoinURL: "https://zoom.us/j/1"},
			{ID: 2, Topic: "Yesterday", StartTime: "2025-06-09T01:30:00Z", Duration: 60},
		}})
	})
	a := New(context.Background(), cfg, nil, sl.Discard(), nil)

	events, err := a.ListEvents(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].ID)
	assert.True(t, events[0].End.Equal(time.Date(2025, 6, 10, 2, 30, 0, 0, time.UTC)))
}

func TestSplitName(t *testing.T) {
	first, last := splitName(models.Attendee{Email: "x.y@example.com"})
	assert.Equal(t, "x.y", first)
	assert.Empty(t, last)
}
