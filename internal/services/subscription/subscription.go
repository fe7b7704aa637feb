// Package services содержит бизнес-логику бронирования подписок: проверку
// пересечений периодов и сохранение подписки после оплаты.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
	"github.com/magabrotheeeer/session-scheduler/internal/metrics"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
	"github.com/magabrotheeeer/session-scheduler/internal/storage/repository"
)

// SubscriptionRepository определяет методы хранилища, нужные сервису.
type SubscriptionRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	ActiveSubscriberIDs(ctx context.Context, d civil.Date) ([]string, error)
}

// EligibilityRequest — запрос на проверку допуска. Даты и тариф необязательны:
// без дат проверяется только наличие действующей подписки.
type EligibilityRequest struct {
	Email     string
	PlanType  *models.PlanType
	StartDate *civil.Date
	EndDate   *civil.Date
}

// RecordRequest — оплаченная подписка, которую нужно сохранить.
type RecordRequest struct {
	Email         string
	PlanType      models.PlanType
	StartDate     civil.Date
	EndDate       civil.Date
	Price         int
	OrderID       string
	PaymentStatus models.PaymentStatus
}

// SubscriptionService проверяет и сохраняет подписки.
type SubscriptionService struct {
	repo        SubscriptionRepository
	clock       *civiltime.Clock
	maxSpanDays int
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, clock *civiltime.Clock, maxSpanDays int,
	m *metrics.Metrics, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:        repo,
		clock:       clock,
		maxSpanDays: maxSpanDays,
		metrics:     m,
		log:         log,
	}
}

// CanSubscribe решает, можно ли пользователю оформить подписку. Отказ по
// бизнес-правилам возвращается в Eligibility, ошибка означает сбой хранилища.
func (s *SubscriptionService) CanSubscribe(ctx context.Context, req EligibilityRequest) (*Eligibility, error) {
	const op = "services.CanSubscribe"
	res, err := s.canSubscribe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.SubscriptionDecision(res.Admit, string(res.ReasonCode))
	s.log.Debug("subscription eligibility decided",
		slog.String("op", op),
		slog.Bool("admit", res.Admit),
		slog.String("reason_code", string(res.ReasonCode)))
	return res, nil
}

func (s *SubscriptionService) canSubscribe(ctx context.Context, req EligibilityRequest) (*Eligibility, error) {
	if req.PlanType != nil {
		if _, err := models.ParsePlanType(string(*req.PlanType)); err != nil {
			return reject(ReasonInvalidPlan, err.Error(), nil), nil
		}
	}
	hasDates := req.StartDate != nil || req.EndDate != nil
	if hasDates {
		if rejection := s.validateRange(req); rejection != nil {
			return rejection, nil
		}
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return admit("no account with this email yet"), nil
	}
	if err != nil {
		return nil, err
	}

	filter := models.ActiveForUser(user.UUID)
	if !hasDates {
		filter.Criteria = append(filter.Criteria, models.EndsAfter(s.clock.Today()))
	}
	active, err := s.repo.ListSubscriptions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return admit("no active subscription"), nil
	}

	if !hasDates {
		latest := furthestEnd(active)
		return reject(ReasonActiveSubscription, fmt.Sprintf(
			"you already hold an active %s for %s", planName(latest.PlanType), describeRange(latest)), &latest), nil
	}
	return ResolveOverlap(active, *req.StartDate, *req.EndDate, *req.PlanType), nil
}

// validateRange проверяет даты до любых обращений к хранилищу.
func (s *SubscriptionService) validateRange(req EligibilityRequest) *Eligibility {
	if req.StartDate == nil || req.EndDate == nil {
		return reject(ReasonInvalidRange, "both start and end dates are required", nil)
	}
	start, end := *req.StartDate, *req.EndDate
	if !start.IsValid() || !end.IsValid() {
		return reject(ReasonInvalidRange, "dates are not valid calendar dates", nil)
	}
	if !start.Before(end) {
		return reject(ReasonInvalidRange, "start date must be before end date", nil)
	}
	if s.clock.IsPast(start) {
		return reject(ReasonStartInPast, fmt.Sprintf("start date %s is in the past", start), nil)
	}
	if s.maxSpanDays > 0 && end.DaysSince(start) > s.maxSpanDays {
		return reject(ReasonSpanTooLong, fmt.Sprintf("subscription cannot span more than %d days", s.maxSpanDays), nil)
	}
	if req.PlanType == nil {
		return reject(ReasonMissingPlan, "plan type is required when dates are given", nil)
	}
	return nil
}

func furthestEnd(subs []models.Subscription) models.Subscription {
	latest := subs[0]
	for _, sub := range subs[1:] {
		if sub.EndDate.After(latest.EndDate) {
			latest = sub
		}
	}
	return latest
}

// Record повторно проверяет допуск и сохраняет подписку. Отказ возвращается
// как ошибка класса validation или conflict с конфликтующей подпиской.
func (s *SubscriptionService) Record(ctx context.Context, req RecordRequest) (*models.Subscription, error) {
	const op = "services.Record"
	plan := req.PlanType
	start, end := req.StartDate, req.EndDate

	elig, err := s.CanSubscribe(ctx, EligibilityRequest{
		Email: req.Email, PlanType: &plan, StartDate: &start, EndDate: &end,
	})
	if err != nil {
		return nil, err
	}
	if !elig.Admit {
		if elig.ReasonCode.IsValidation() {
			return nil, apperr.Validation(op, elig.Reason)
		}
		return nil, apperr.Conflict(op, elig.Reason, elig.Conflict)
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(op, "user with this email is not registered")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = models.PaymentPaid
	}
	sub := models.Subscription{
		UserID:        user.UUID,
		PlanType:      plan,
		StartDate:     start,
		EndDate:       end,
		Status:        models.StatusActive,
		PaymentStatus: paymentStatus,
		Price:         req.Price,
		OrderID:       req.OrderID,
	}
	id, err := s.repo.CreateSubscription(ctx, sub)
	if errors.Is(err, repository.ErrOverlap) {
		s.log.Warn("concurrent overlapping booking rejected by storage",
			slog.String("op", op), slog.String("user_id", user.UUID), sl.Err(err))
		return nil, apperr.Conflict(op, "requested dates overlap an existing subscription", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = id

	s.log.Info("subscription recorded",
		slog.String("op", op),
		slog.Int64("subscription_id", id),
		slog.String("user_id", user.UUID),
		slog.String("plan", string(plan)))
	return &sub, nil
}

// ActiveSubscriberIDs возвращает пользователей с активной подпиской на дату d.
func (s *SubscriptionService) ActiveSubscriberIDs(ctx context.Context, d civil.Date) ([]string, error) {
	const op = "services.ActiveSubscriberIDs"
	ids, err := s.repo.ActiveSubscriberIDs(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
