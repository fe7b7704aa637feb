package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

const subscriptionColumns = `id, user_uid, plan_type, start_date, end_date, status,
			      payment_status, price, order_id`

// buildSubscriptionWhere превращает условия фильтра в параметризованный WHERE.
func buildSubscriptionWhere(filter models.SubscriptionFilter) (string, []any, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}
	clauses := make([]string, 0, len(filter.Criteria))
	args := make([]any, 0, len(filter.Criteria))
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	for _, c := range filter.Criteria {
		switch c.Kind {
		case models.CritUser:
			clauses = append(clauses, "user_uid::text = "+next(c.UserID))
		case models.CritStatus:
			clauses = append(clauses, "status = "+next(string(c.Status)))
		case models.CritPlan:
			clauses = append(clauses, "plan_type = "+next(string(c.Plan)))
		case models.CritEndsAfter:
			clauses = append(clauses, "end_date > "+next(dateArg(c.Date))+"::date")
		case models.CritStartsBefore:
			clauses = append(clauses, "start_date < "+next(dateArg(c.Date))+"::date")
		case models.CritCoversDate:
			p := next(dateArg(c.Date))
			clauses = append(clauses, "start_date <= "+p+"::date AND end_date > "+p+"::date")
		}
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var (
		sub        models.Subscription
		start, end time.Time
		plan       string
		status     string
		payment    string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &plan, &start, &end, &status,
		&payment, &sub.Price, &sub.OrderID); err != nil {
		return models.Subscription{}, err
	}
	sub.PlanType = models.PlanType(plan)
	sub.Status = models.SubscriptionStatus(status)
	sub.PaymentStatus = models.PaymentStatus(payment)
	sub.StartDate = dateFromDB(start)
	sub.EndDate = dateFromDB(end)
	return sub, nil
}

// ListSubscriptions возвращает подписки, удовлетворяющие фильтру, в порядке id.
func (s *Storage) ListSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args, err := buildSubscriptionWhere(filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  ` + where + `
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateSubscription сохраняет подписку и возвращает её id. Пересечение с активной
// подпиской того же пользователя возвращает ErrOverlap.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan_type, start_date, end_date, status,
			      payment_status, price, order_id)
			  VALUES ($1, $2, $3::date, $4::date, $5, $6, $7, $8)
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, string(sub.PlanType), dateArg(sub.StartDate), dateArg(sub.EndDate),
		string(sub.Status), string(sub.PaymentStatus), sub.Price, sub.OrderID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return id, nil
}

// ActiveSubscriberIDs возвращает пользователей с активной подпиской на дату d.
func (s *Storage) ActiveSubscriberIDs(ctx context.Context, d civil.Date) ([]string, error) {
	const op = "storage.ActiveSubscriberIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT DISTINCT user_uid::text
			  FROM subscriptions
			  WHERE status = 'active' AND start_date <= $1::date AND end_date > $1::date
			  ORDER BY 1`
	rows, err := s.DB.QueryContext(ctx, query, dateArg(d))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
