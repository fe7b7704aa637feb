// Package create реализует HTTP-обработчик сохранения оплаченной подписки.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

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

// Request — тело запроса на сохранение подписки. Конец периода не включается.
type Request struct {
	Email         string `json:"email" validate:"required,email" example:"user@example.com"`
	PlanType      string `json:"plan_type" validate:"required,oneof=single_day monthly monthly_shared" example:"monthly"`
	StartDate     string `json:"start_date" validate:"required,datetime=2006-01-02" example:"2025-06-01"`
	EndDate       string `json:"end_date" validate:"required,datetime=2006-01-02" example:"2025-07-01"`
	Price         int    `json:"price" validate:"min=0" example:"499"`
	OrderID       string `json:"order_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty" validate:"omitempty,oneof=pending paid failed"`
}

// Handler обрабатывает запросы на сохранение подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает сохранение подписки.
type Service interface {
	Record(ctx context.Context, req subservice.RecordRequest) (*models.Subscription, error)
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
// @Summary Сохранить подписку
// @Description Повторно проверяет пересечения и сохраняет оплаченную подписку.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные подписки"
// @Success 201 {object} response.Response "Сохранённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Пересечение с существующей подпиской"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
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

	start, err := civiltime.ParseDate(req.StartDate)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("start_date must be in format 2006-01-02"))
		return
	}
	end, err := civiltime.ParseDate(req.EndDate)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("end_date must be in format 2006-01-02"))
		return
	}

	sub, err := h.service.Record(r.Context(), subservice.RecordRequest{
		Email:         req.Email,
		PlanType:      models.PlanType(req.PlanType),
		StartDate:     start,
		EndDate:       end,
		Price:         req.Price,
		OrderID:       req.OrderID,
		PaymentStatus: models.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		log.Error("failed to record subscription", sl.Err(err))
		status, res := response.FromError(err, "could not record subscription")
		w.WriteHeader(status)
		render.JSON(w, r, res)
		return
	}

	log.Info("subscription created", slog.Int64("id", sub.ID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
