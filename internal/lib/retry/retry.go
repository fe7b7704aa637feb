// Package retry повторяет вызовы платформ видеовстреч с экспоненциальной задержкой.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
	"github.com/magabrotheeeer/session-scheduler/internal/lib/sl"
)

// Policy задаёт число попыток и задержку перед второй попыткой.
// Задержка перед попыткой N равна BaseDelay * 2^(N-2).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Timer подменяет таймер ожидания, nil означает реальный таймер.
	Timer backoff.Timer
}

// DefaultPolicy: три попытки, ожидание 1s и затем 2s.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseDelay << max(p.MaxAttempts, 1)
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do вызывает fn до MaxAttempts раз. Ошибки, которые не имеет смысла повторять
// (валидация, конфликт, отказ в доступе), возвращаются сразу. После исчерпания
// попыток возвращается последняя ошибка.
func Do[T any](ctx context.Context, log *slog.Logger, p Policy, name string, fn func(context.Context) (T, error)) (T, error) {
	const op = "retry.Do"
	var result T
	attempt := 0

	operation := func() error {
		attempt++
		res, err := fn(ctx)
		if err != nil {
			if !apperr.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("remote call failed, retrying",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			sl.Err(err))
	}

	if err := backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.Timer); err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return zero, fmt.Errorf("%s: %s: %w", op, name, err)
		}
		return zero, err
	}
	return result, nil
}
