// Package manage реализует HTTP-обработчик получения или создания встречи дня
// с добавлением участников.
package manage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/session-scheduler/internal/http/response"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/validate"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// Request — тело запроса POST /meetings/manage.
type Request struct {
	Date             string   `json:"date" validate:"required,datetime=2006-01-02" example:"2025-06-10"`
	Platform         string   `json:"platform,omitempty" validate:"omitempty,oneof=google_meet zoom"`
	StartTime        string   `json:"start_time,omitempty" example:"07:00"`
	DurationMinutes  int      `json:"duration_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	Title            string   `json:"title,omitempty"`
	Description      string   `json:"description,omitempty"`
	UserIDs          []string `json:"user_ids" validate:"dive,required"`
	Operation        string   `json:"operation,omitempty" validate:"omitempty,oneof=get_or_create create get"`
	SyncFromCalendar *bool    `json:"sync_from_calendar,omitempty"`
	CreatedBy        string   `json:"created_by,omitempty"`
	IsDefault        bool     `json:"is_default,omitempty"`
}

// Handler обрабатывает запросы на управление встречей дня.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает оркестратор встречи.
type Service interface {
	ManageMeeting(ctx context.Context, req meetingservice.ManageRequest) (*models.Meeting, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.New(),
	}
}

// ServeHTTP godoc
// @Summary Получить или создать встречу дня
// @Description Возвращает встречу на дату, создавая её при необходимости, и добавляет новых участников.
// @Tags Meetings
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры встречи"
// @Success 200 {object} response.Response "Встреча"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Встреча не найдена (operation=get)"
// @Failure 409 {object} response.ErrorResponse "Встреча уже существует (operation=create)"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платформа отклонила учётные данные"
// @Failure 503 {object} response.ErrorResponse "Платформа временно недоступна"
// @Router /meetings/manage [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.meeting.manage"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	manageReq, err := toManageRequest(req)
	if err != nil {
		log.Error("invalid date or time", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("start_time must be in format 15:04"))
		return
	}

	meeting, err := h.service.ManageMeeting(r.Context(), manageReq)
	if err != nil {
		log.Error("failed to manage meeting", sl.Err(err))
		status, res := response.FromError(err, "could not manage meeting")
		w.WriteHeader(status)
		render.JSON(w, r, res)
		return
	}

	log.Info("meeting managed", slog.Int64("meeting_id", meeting.ID), slog.Int("attendees", len(meeting.Attendees)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"meeting": meeting,
	}))
}

func toManageRequest(req Request) (meetingservice.ManageRequest, error) {
	date, err := civiltime.ParseDate(req.Date)
	if err != nil {
		return meetingservice.ManageRequest{}, err
	}
	out := meetingservice.ManageRequest{
		Date:             date,
		Platform:         models.Platform(req.Platform),
		Duration:         time.Duration(req.DurationMinutes) * time.Minute,
		Title:            req.Title,
		Description:      req.Description,
		UserIDs:          req.UserIDs,
		Operation:        models.Operation(req.Operation),
		SyncFromCalendar: req.SyncFromCalendar,
		CreatedBy:        req.CreatedBy,
		IsDefault:        req.IsDefault,
	}
	if out.CreatedBy == "" {
		out.CreatedBy = "admin"
	}
	if req.StartTime != "" {
		t, err := civiltime.ParseTime(req.StartTime)
		if err != nil {
			return meetingservice.ManageRequest{}, err
		}
		out.StartTime = &t
	}
	return out, nil
}
