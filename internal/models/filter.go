package models

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

// CriterionKind — поле, по которому фильтруются подписки.
type CriterionKind int

const (
	CritUser CriterionKind = iota + 1
	CritStatus
	CritPlan
	CritEndsAfter
	CritStartsBefore
	CritCoversDate
)

// Criterion — одно условие фильтра. Заполнено только поле, соответствующее Kind.
type Criterion struct {
	Kind   CriterionKind
	UserID string
	Status SubscriptionStatus
	Plan   PlanType
	Date   civil.Date
}

// ByUser отбирает подписки пользователя.
func ByUser(userID string) Criterion { return Criterion{Kind: CritUser, UserID: userID} }

// ByStatus отбирает подписки со статусом.
func ByStatus(s SubscriptionStatus) Criterion { return Criterion{Kind: CritStatus, Status: s} }

// ByPlan отбирает подписки тарифа.
func ByPlan(p PlanType) Criterion { return Criterion{Kind: CritPlan, Plan: p} }

// EndsAfter отбирает подписки, действующие после даты d (end_date > d).
func EndsAfter(d civil.Date) Criterion { return Criterion{Kind: CritEndsAfter, Date: d} }

// StartsBefore отбирает подписки, начинающиеся до даты d (start_date < d).
func StartsBefore(d civil.Date) Criterion { return Criterion{Kind: CritStartsBefore, Date: d} }

// CoversDate отбирает подписки, покрывающие дату d.
func CoversDate(d civil.Date) Criterion { return Criterion{Kind: CritCoversDate, Date: d} }

// SubscriptionFilter — конъюнкция условий.
type SubscriptionFilter struct {
	Criteria []Criterion
}

// NewSubscriptionFilter собирает фильтр из условий.
func NewSubscriptionFilter(criteria ...Criterion) SubscriptionFilter {
	return SubscriptionFilter{Criteria: criteria}
}

// ActiveForUser — активные подписки пользователя.
func ActiveForUser(userID string) SubscriptionFilter {
	return NewSubscriptionFilter(ByUser(userID), ByStatus(StatusActive))
}

// ErrEmptyFilter возвращается для фильтра без условий.
var ErrEmptyFilter = errors.New("subscription filter has no criteria")

// Validate проверяет условия фильтра до построения запроса.
func (f SubscriptionFilter) Validate() error {
	if len(f.Criteria) == 0 {
		return ErrEmptyFilter
	}
	for i, c := range f.Criteria {
		switch c.Kind {
		case CritUser:
			if c.UserID == "" {
				return fmt.Errorf("criterion %d: empty user id", i)
			}
		case CritStatus:
			if c.Status != StatusActive && c.Status != StatusInactive {
				return fmt.Errorf("criterion %d: unknown status %q", i, c.Status)
			}
		case CritPlan:
			if _, err := ParsePlanType(string(c.Plan)); err != nil {
				return fmt.Errorf("criterion %d: %w", i, err)
			}
		case CritEndsAfter, CritStartsBefore, CritCoversDate:
			if !c.Date.IsValid() {
				return fmt.Errorf("criterion %d: invalid date %s", i, c.Date)
			}
		default:
			return fmt.Errorf("criterion %d: unknown kind %d", i, c.Kind)
		}
	}
	return nil
}
