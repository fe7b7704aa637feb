package models

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// PlanType — тариф подписки.
type PlanType string

const (
	PlanSingleDay     PlanType = "single_day"
	PlanMonthly       PlanType = "monthly"
	PlanMonthlyShared PlanType = "monthly_shared"
)

// ParsePlanType проверяет, что строка является известным тарифом.
func ParsePlanType(s string) (PlanType, error) {
	switch p := PlanType(s); p {
	case PlanSingleDay, PlanMonthly, PlanMonthlyShared:
		return p, nil
	default:
		return "", fmt.Errorf("unknown plan type %q", s)
	}
}

// IsShort сообщает, что тариф покрывает один день.
func (p PlanType) IsShort() bool {
	return p == PlanSingleDay
}

// SubscriptionStatus — статус подписки.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
)

// PaymentStatus — статус оплаты заказа.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Subscription покрывает полуинтервал [StartDate, EndDate).
type Subscription struct {
	ID            int64              `json:"id"`
	UserID        string             `json:"user_id"`
	PlanType      PlanType           `json:"plan_type"`
	StartDate     civil.Date         `json:"start_date"`
	EndDate       civil.Date         `json:"end_date"`
	Status        SubscriptionStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	Price         int                `json:"price"`
	OrderID       string             `json:"order_id,omitempty"`
}

// Overlaps сообщает, пересекается ли подписка с полуинтервалом [start, end).
// Соприкасающиеся границы пересечением не считаются.
func (s Subscription) Overlaps(start, end civil.Date) bool {
	return s.StartDate.Before(end) && start.Before(s.EndDate)
}

// Covers сообщает, что дата d входит в период подписки.
func (s Subscription) Covers(d civil.Date) bool {
	return !d.Before(s.StartDate) && d.Before(s.EndDate)
}
