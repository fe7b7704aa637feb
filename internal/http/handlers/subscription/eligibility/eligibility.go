// Package eligibility реализует HTTP-обработчик проверки допуска к бронированию подписки.
package eligibility

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/session-scheduler/internal/http/response"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/validate"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	subservice "github.com/magabrotheeeer/session-scheduler/internal/services/subscription"
)

// Request — тело запроса проверки допуска. Даты передаются парой.
type Request struct {
	Email     string `json:"email" validate:"required,email" example:"user@example.com"`
	PlanType  string `json:"plan_type,omitempty" example:"monthly"`
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02" example:"2025-06-01"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02" example:"2025-07-01"`
}

// Handler обрабатывает запросы проверки допуска.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает проверку допуска.
type Service interface {
	CanSubscribe(ctx context.Context, req subservice.EligibilityRequest) (*subservice.Eligibility, error)
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
// @Summary Проверить возможность оформить подписку
// @Description Решение о допуске с причиной отказа и конфликтующей подпиской. Отказ возвращается со статусом 200.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры бронирования"
// @Success 200 {object} response.Response "Решение"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка хранилища"
// @Router /subscriptions/eligibility [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.eligibility"
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

	eligReq := subservice.EligibilityRequest{Email: req.Email}
	if req.PlanType != "" {
		plan := models.PlanType(req.PlanType)
		eligReq.PlanType = &plan
	}
	var err error
	if eligReq.StartDate, err = optionalDate(req.StartDate); err != nil {
		log.Error("invalid start date", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("start_date must be in format 2006-01-02"))
		return
	}
	if eligReq.EndDate, err = optionalDate(req.EndDate); err != nil {
		log.Error("invalid end date", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("end_date must be in format 2006-01-02"))
		return
	}

	res, err := h.service.CanSubscribe(r.Context(), eligReq)
	if err != nil {
		log.Error("failed to check eligibility", sl.Err(err))
		status, body := response.FromError(err, "could not check eligibility")
		w.WriteHeader(status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}

// optionalDate возвращает nil для пустой строки.
func optionalDate(s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := civiltime.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
