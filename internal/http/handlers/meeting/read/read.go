// Package read реализует HTTP-обработчик получения встречи по дате без её создания.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/session-scheduler/internal/http/response"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	meetingservice "github.com/magabrotheeeer/session-scheduler/internal/services/meeting"
)

// Handler обрабатывает запросы на чтение встречи по дате.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает оркестратор встречи.
type Service interface {
	ManageMeeting(ctx context.Context, req meetingservice.ManageRequest) (*models.Meeting, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить встречу на дату
// @Description Возвращает встречу на дату. Встреча может быть найдена в календаре платформы, но не создаётся.
// @Tags Meetings
// @Produce  json
// @Param date path string true "Дата в формате 2006-01-02"
// @Success 200 {object} response.Response "Встреча"
// @Failure 404 {object} response.ErrorResponse "Встреча не найдена"
// @Failure 422 {object} response.ErrorResponse "Некорректная дата"
// @Router /meetings/{date} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.meeting.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	date, err := civiltime.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		log.Error("failed to parse date from url", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("date must be in format 2006-01-02"))
		return
	}

	meeting, err := h.service.ManageMeeting(r.Context(), meetingservice.ManageRequest{
		Date:      date,
		Operation: models.OpGet,
	})
	if err != nil {
		log.Error("failed to read meeting", sl.Err(err))
		status, res := response.FromError(err, "could not read meeting")
		w.WriteHeader(status)
		render.JSON(w, r, res)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"meeting": meeting,
	}))
}
