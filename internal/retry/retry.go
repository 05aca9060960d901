// Package retry provides a reusable retry policy with exponential backoff and
// jitter for venue calls. The policy is a value: classification, sleeping,
// and randomness are injectable so the behavior is testable with a fake
// clock.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried. Only errors the Retryable
// classifier accepts are retried; everything else fails immediately.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; each subsequent retry
	// doubles it, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter spreads each delay by ±25% to avoid thundering herds.
	Jitter bool
	// Retryable classifies an error as transient. A nil classifier retries
	// nothing.
	Retryable func(error) bool

	// Sleep and Rand are injection points for tests. When nil, Sleep waits
	// on a real timer and Rand uses math/rand.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// New returns a policy with the given attempt budget and base delay, the
// standard 60s delay cap, jitter enabled, and the given classifier.
func New(maxAttempts int, baseDelay time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    60 * time.Second,
		Jitter:      true,
		Retryable:   retryable,
	}
}

// Delay returns the backoff delay for the given zero-indexed attempt:
// BaseDelay × 2^attempt, capped at MaxDelay, with optional ±25% jitter.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		// jitter factor in [0.75, 1.25)
		d = time.Duration(float64(d) * (0.75 + 0.5*r()))
	}
	return d
}

// Do runs op, retrying transient failures with backoff until the attempt
// budget is exhausted or the context is cancelled. The last error is
// returned, wrapped with the attempt count when the budget ran out.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
