package services

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/civiltime"
	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

// ReasonCode — машиночитаемая причина решения о допуске.
type ReasonCode string

const (
	ReasonOK                 ReasonCode = "ok"
	ReasonInvalidRange       ReasonCode = "invalid_range"
	ReasonStartInPast        ReasonCode = "start_in_past"
	ReasonSpanTooLong        ReasonCode = "span_too_long"
	ReasonMissingPlan        ReasonCode = "missing_plan"
	ReasonInvalidPlan        ReasonCode = "invalid_plan"
	ReasonOverlap            ReasonCode = "overlap"
	ReasonActiveSubscription ReasonCode = "active_subscription"
)

// IsValidation сообщает, что отказ вызван некорректным запросом, а не конфликтом.
func (c ReasonCode) IsValidation() bool {
	switch c {
	case ReasonInvalidRange, ReasonStartInPast, ReasonSpanTooLong, ReasonMissingPlan, ReasonInvalidPlan:
		return true
	default:
		return false
	}
}

// Eligibility — решение о допуске новой подписки.
type Eligibility struct {
	Admit      bool                 `json:"admit"`
	Reason     string               `json:"reason"`
	ReasonCode ReasonCode           `json:"reason_code"`
	Conflict   *models.Subscription `json:"conflicting_subscription,omitempty"`
}

func admit(reason string) *Eligibility {
	return &Eligibility{Admit: true, Reason: reason, ReasonCode: ReasonOK}
}

func reject(code ReasonCode, reason string, conflict *models.Subscription) *Eligibility {
	return &Eligibility{Admit: false, Reason: reason, ReasonCode: code, Conflict: conflict}
}

// ResolveOverlap решает, можно ли забронировать [start, end) тарифа plan при
// существующих подписках existing (в порядке хранилища). Интервалы полуоткрытые,
// поэтому соприкосновение границ пересечением не считается.
//
// При нескольких пересечениях причина выбирается по приоритету:
//  1. существующая короткая подписка против новой длинной;
//  2. существующая длинная подписка против новой короткой;
//  3. короткая против короткой;
//  4. первое найденное пересечение.
func ResolveOverlap(existing []models.Subscription, start, end civil.Date, plan models.PlanType) *Eligibility {
	var overlapping []models.Subscription
	for _, sub := range existing {
		if sub.Status != models.StatusActive {
			continue
		}
		if sub.Overlaps(start, end) {
			overlapping = append(overlapping, sub)
		}
	}
	if len(overlapping) == 0 {
		return admit("no overlapping subscription")
	}

	if !plan.IsShort() {
		if sub, ok := firstWhere(overlapping, func(s models.Subscription) bool { return s.PlanType.IsShort() }); ok {
			return reject(ReasonOverlap, fmt.Sprintf(
				"you already have a %s booked on %s, which falls inside the requested %s",
				planName(sub.PlanType), describeRange(sub), planName(plan)), &sub)
		}
	}
	if plan.IsShort() {
		if sub, ok := firstWhere(overlapping, func(s models.Subscription) bool { return !s.PlanType.IsShort() }); ok {
			return reject(ReasonOverlap, fmt.Sprintf(
				"your %s already covers %s", planName(sub.PlanType), describeRange(sub)), &sub)
		}
		if sub, ok := firstWhere(overlapping, func(s models.Subscription) bool { return s.PlanType.IsShort() }); ok {
			return reject(ReasonOverlap, fmt.Sprintf(
				"you already have a %s booked on %s", planName(sub.PlanType), describeRange(sub)), &sub)
		}
	}

	sub := overlapping[0]
	return reject(ReasonOverlap, fmt.Sprintf(
		"requested dates overlap your existing %s for %s", planName(sub.PlanType), describeRange(sub)), &sub)
}

func firstWhere(subs []models.Subscription, pred func(models.Subscription) bool) (models.Subscription, bool) {
	for _, s := range subs {
		if pred(s) {
			return s, true
		}
	}
	return models.Subscription{}, false
}

func planName(p models.PlanType) string {
	switch p {
	case models.PlanSingleDay:
		return "single-day session"
	case models.PlanMonthly:
		return "monthly plan"
	case models.PlanMonthlyShared:
		return "shared monthly plan"
	default:
		return string(p)
	}
}

// describeRange показывает период с включённым последним днём.
func describeRange(s models.Subscription) string {
	last := civiltime.LastDay(s.EndDate)
	if last == s.StartDate {
		return s.StartDate.String()
	}
	return s.StartDate.String() + " to " + last.String()
}
