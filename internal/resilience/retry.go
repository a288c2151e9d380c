// Package resilience provides the retry/backoff and circuit-breaker primitives
// (spec §4.9). Retry is used by the LLM client and the persistence writer;
// the circuit breaker guards the OCR and LLM clients. The OCR client does
// not retry. Grounded on
// github.com/cenkalti/backoff/v4 and github.com/sony/gobreaker.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds exponential-backoff retry: max attempts, initial delay,
// multiplier and max delay, matching spec §4.9's resilience primitive.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// newBackOff builds a cenkalti/backoff ExponentialBackOff from the policy,
// bounded to MaxAttempts tries via backoff.WithMaxRetries.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxDelay
	eb.MaxElapsedTime = 0 // bounded by attempt count, not elapsed wall time
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// RetryableFunc performs one attempt. It returns (result, retryable, err).
// When err is nil the retry loop stops successfully. When err is non-nil and
// retryable is false, the loop stops immediately with that error.
type RetryableFunc[T any] func(attempt int) (T, bool, error)

// Do runs fn under the policy, logging each retry, and returns the final
// result or the last error (retryable exhaustion or a non-retryable failure).
func Do[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, operation string, fn RetryableFunc[T]) (T, error) {
	var (
		result  T
		attempt int
		lastErr error
	)

	operationFn := func() error {
		attempt++
		r, retryable, err := fn(attempt)
		if err == nil {
			result = r
			return nil
		}
		lastErr = err
		if !retryable {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operationFn, policy.newBackOff(ctx), notify); err != nil {
		var zero T
		if lastErr != nil {
			return zero, lastErr
		}
		return zero, err
	}
	return result, nil
}
