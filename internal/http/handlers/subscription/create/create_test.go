package create

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	subservice "github.com/magabrotheeeer/session-scheduler/internal/services/subscription"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Record(ctx context.Context, req subservice.RecordRequest) (*models.Subscription, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	june1 := civil.Date{Year: 2025, Month: 6, Day: 1}
	july1 := civil.Date{Year: 2025, Month: 7, Day: 1}
	validBody := `{"email":"a@example.com","plan_type":"monthly","start_date":"2025-06-01","end_date":"2025-07-01","price":499}`
	expectedReq := subservice.RecordRequest{
		Email:     "a@example.com",
		PlanType:  models.PlanMonthly,
		StartDate: june1,
		EndDate:   july1,
		Price:     499,
	}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful create",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, expectedReq).Return(&models.Subscription{
					ID: 7, UserID: "u1", PlanType: models.PlanMonthly, StartDate: june1, EndDate: july1,
					Status: models.StatusActive, PaymentStatus: models.PaymentPaid, Price: 499,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":7`,
		},
		{
			name:           "unknown plan",
			body:           `{"email":"a@example.com","plan_type":"yearly","start_date":"2025-06-01","end_date":"2025-07-01"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field PlanType must be one of`,
		},
		{
			name:           "missing dates",
			body:           `{"email":"a@example.com","plan_type":"monthly"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field StartDate is a required field`,
		},
		{
			name:           "malformed end date",
			body:           `{"email":"a@example.com","plan_type":"monthly","start_date":"2025-06-01","end_date":"2025/07/01"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field EndDate must match format 2006-01-02`,
		},
		{
			name: "overlap conflict",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, expectedReq).Return(nil,
					apperr.Conflict("services.Record", "your monthly plan already covers 2025-06-01 to 2025-06-30",
						&models.Subscription{ID: 3})).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `your monthly plan already covers 2025-06-01 to 2025-06-30`,
		},
		{
			name: "user not registered",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, expectedReq).Return(nil,
					apperr.NotFound("services.Record", "user with this email is not registered")).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user with this email is not registered`,
		},
		{
			name: "storage failure",
			body: validBody,
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, expectedReq).Return(nil, errors.New("db")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not record subscription`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			New(sl.Discard(), mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
