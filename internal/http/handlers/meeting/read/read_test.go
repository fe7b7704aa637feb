package read

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// MockService реализует интерфейс read.Service
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

func TestReadHandler(t *testing.T) {
	day := civil.Date{Year: 2025, Month: 6, Day: 10}
	getReq := meetingservice.ManageRequest{Date: day, Operation: models.OpGet}

	tests := []struct {
		name           string
		date           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "meeting found",
			date: "2025-06-10",
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, getReq).
					Return(&models.Meeting{ID: 1, MeetingDate: day, MeetingLink: "https://meet.google.com/abc"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"meeting_date":"2025-06-10"`,
		},
		{
			name:           "invalid date",
			date:           "10-06-2025",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"date must be in format 2006-01-02"}`,
		},
		{
			name: "not found",
			date: "2025-06-10",
			setupMock: func(m *MockService) {
				m.On("ManageMeeting", mock.Anything, getReq).
					Return(nil, apperr.NotFound("services.ManageMeeting", "no meeting scheduled for 2025-06-10")).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `no meeting scheduled for 2025-06-10`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodGet, "/meetings/"+tt.date, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("date", tt.date)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			New(sl.Discard(), mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
