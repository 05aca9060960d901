package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fixedPolicy(attempts int) (Policy, *[]time.Duration) {
	slept := &[]time.Duration{}
	p := New(attempts, 100*time.Millisecond, isTransient)
	p.Jitter = false
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return p, slept
}

func TestDelayDoubles(t *testing.T) {
	p := New(5, 100*time.Millisecond, isTransient)
	p.Jitter = false

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 800*time.Millisecond, p.Delay(3))
}

func TestDelayCapped(t *testing.T) {
	p := New(10, 100*time.Millisecond, isTransient)
	p.Jitter = false
	p.MaxDelay = 250 * time.Millisecond

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 250*time.Millisecond, p.Delay(2))
	assert.Equal(t, 250*time.Millisecond, p.Delay(9))
}

func TestDelayJitterBounds(t *testing.T) {
	p := New(3, 100*time.Millisecond, isTransient)

	p.Rand = func() float64 { return 0 }
	assert.Equal(t, 75*time.Millisecond, p.Delay(0))

	p.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))

	p.Rand = func() float64 { return 0.999 }
	d := p.Delay(0)
	assert.Less(t, d, 125*time.Millisecond)
	assert.Greater(t, d, 100*time.Millisecond)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	p, slept := fixedPolicy(4)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Two sleeps between three attempts, doubling.
	require.Len(t, *slept, 2)
	assert.Equal(t, 100*time.Millisecond, (*slept)[0])
	assert.Equal(t, 200*time.Millisecond, (*slept)[1])
}

func TestDoStopsOnNonTransient(t *testing.T) {
	p, slept := fixedPolicy(4)
	permanent := errors.New("permanent")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoExhaustsBudget(t *testing.T) {
	p, _ := fixedPolicy(3)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDoHonorsContextCancellation(t *testing.T) {
	p, _ := fixedPolicy(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoNilClassifierNeverRetries(t *testing.T) {
	p, _ := fixedPolicy(3)
	p.Retryable = nil

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}
