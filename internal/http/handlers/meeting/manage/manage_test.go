package manage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// MockService реализует интерфейс manage.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ManageMeeting(ctx context.Context, req meetingservice.ManageRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*models.Meeting), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestManageHandler(t *testing.T) {
	day := civil.Date{Year: 2025, Month: 6, Day: 10}
	meeting := &models.Meeting{ID: 5, MeetingDate: day, Platform: models.PlatformZoom, MeetingLink: "https://zoom.us/j/1"}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful get or create",
			body: `{"date":"2025-06-10","platform":"zoom","start_time":"18:30","duration_minutes":45,"user_ids":["u1","u2"]}`,
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, mock.MatchedBy(func(r meetingservice.ManageRequest) bool {
					return r.Date == day && r.Platform == models.PlatformZoom &&
						r.StartTime != nil && *r.StartTime == (civil.Time{Hour: 18, Minute: 30}) &&
						r.Duration == 45*time.Minute && len(r.UserIDs) == 2 && r.CreatedBy == "admin" &&
						r.SyncFromCalendar == nil
				})).Return(meeting, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"meeting_link":"https://zoom.us/j/1"`,
		},
		{
			name:           "invalid json",
			body:           `{"date":`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "missing date",
			body:           `{"user_ids":["u1"]}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Date is a required field`,
		},
		{
			name:           "date outside calendar",
			body:           `{"date":"2025-13-01"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Date must match format 2006-01-02`,
		},
		{
			name:           "unknown operation",
			body:           `{"date":"2025-06-10","operation":"delete"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Operation must be one of`,
		},
		{
			name:           "bad start time",
			body:           `{"date":"2025-06-10","start_time":"7pm"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `start_time must be in format 15:04`,
		},
		{
			name: "get on absent date",
			body: `{"date":"2025-06-10","operation":"get"}`,
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, mock.Anything).
					Return(nil, apperr.NotFound("services.ManageMeeting", "no meeting scheduled for 2025-06-10")).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `no meeting scheduled for 2025-06-10`,
		},
		{
			name: "create on existing date",
			body: `{"date":"2025-06-10","operation":"create"}`,
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, mock.Anything).
					Return(nil, apperr.Conflict("services.ManageMeeting", "meeting already exists for 2025-06-10", meeting)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"conflict":{"id":5`,
		},
		{
			name: "platform unavailable",
			body: `{"date":"2025-06-10"}`,
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, mock.Anything).
					Return(nil, apperr.RemoteTransient("zoom.CreateEvent", errors.New("502"))).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "storage failure",
			body: `{"date":"2025-06-10"}`,
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, mock.Anything).Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not manage meeting"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/meetings/manage", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			New(sl.Discard(), mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
