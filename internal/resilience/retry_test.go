package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

// instantTimer fires immediately and records every requested wait
type instantTimer struct {
	waits *[]time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	*t.waits = append(*t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func recordingTimer(waits *[]time.Duration) func() backoff.Timer {
	return func() backoff.Timer {
		return &instantTimer{waits: waits, c: make(chan time.Time, 1)}
	}
}

func TestCalculateDelayExponentialBaseSeven(t *testing.T) {
	p := NewPolicy(GenerationRetry, nil)

	assert.Equal(t, time.Duration(0), p.CalculateDelay(1))
	assert.Equal(t, time.Second, p.CalculateDelay(2))
	assert.Equal(t, 7*time.Second, p.CalculateDelay(3))
	assert.Equal(t, 49*time.Second, p.CalculateDelay(4))
	assert.Equal(t, 60*time.Second, p.CalculateDelay(5), "capped at MaxDelay")
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var waits []time.Duration
	p := NewPolicy(GenerationRetry, func(err error) bool { return errors.Is(err, errTransient) }).
		WithTimer(recordingTimer(&waits))

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 7 * time.Second}, waits)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	var waits []time.Duration
	retries := 0
	p := NewPolicy(GenerationRetry, func(error) bool { return true }).WithTimer(recordingTimer(&waits))
	p.OnRetry = func(int, time.Duration, error) { retries++ }

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 4, retries)
	assert.Len(t, waits, 4)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("bad request")
	p := NewPolicy(GenerationRetry, func(err error) bool { return errors.Is(err, errTransient) })

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 2}, func(error) bool { return true })

	calls := 0
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnContextErrorFromOperation(t *testing.T) {
	p := NewPolicy(GenerationRetry, func(error) bool { return true })

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 1, calls)
}

func TestDoReportsAttemptNumbersToOnRetry(t *testing.T) {
	var waits []time.Duration
	var attempts []int
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, BackoffFactor: 2}
	p := NewPolicy(cfg, func(error) bool { return true }).WithTimer(recordingTimer(&waits))
	p.OnRetry = func(attempt int, _ time.Duration, err error) {
		attempts = append(attempts, attempt)
		assert.ErrorIs(t, err, errTransient)
	}

	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errTransient
	})
	assert.Same(t, errTransient, err)
	assert.Equal(t, []int{2, 3}, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits, "no cap when MaxDelay is unset")
}

func TestJitterStaysWithinTenPercent(t *testing.T) {
	p := NewPolicy(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2, Jitter: true}, nil)

	for i := 0; i < 50; i++ {
		d := p.CalculateDelay(2)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond+time.Nanosecond)
	}
}
