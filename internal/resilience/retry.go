// Package resilience provides the retry policy shared by backend clients
// and text generators.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitterFactor is the randomization applied to each wait when Jitter is set
const jitterFactor = 0.1

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`   // including the initial attempt
	InitialDelay  time.Duration `mapstructure:"initial_delay"`  // delay before the first retry
	MaxDelay      time.Duration `mapstructure:"max_delay"`      // cap per wait
	BackoffFactor float64       `mapstructure:"backoff_factor"` // exponential base
	Jitter        bool          `mapstructure:"jitter"`
}

// GenerationRetry is used for text generation: 5 attempts, 1s initial
// delay, exponential base 7.
var GenerationRetry = RetryConfig{
	MaxAttempts:   5,
	InitialDelay:  time.Second,
	MaxDelay:      60 * time.Second,
	BackoffFactor: 7,
}

// BackendRetry is used for idempotent backend reads
var BackendRetry = RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  50 * time.Millisecond,
	MaxDelay:      time.Second,
	BackoffFactor: 2,
	Jitter:        true,
}

// Classifier reports whether an error is worth retrying
type Classifier func(error) bool

// Policy couples a RetryConfig with a Classifier
type Policy struct {
	Config     RetryConfig
	Classifier Classifier
	// OnRetry is called before each wait with the upcoming attempt number
	OnRetry func(attempt int, delay time.Duration, err error)

	newTimer func() backoff.Timer
}

// NewPolicy creates a policy; a nil classifier retries nothing
func NewPolicy(cfg RetryConfig, classifier Classifier) *Policy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if classifier == nil {
		classifier = func(error) bool { return false }
	}
	return &Policy{Config: cfg, Classifier: classifier}
}

// WithTimer replaces the wait timer. newTimer is called once per Do so
// concurrent calls never share a timer; tests use it to avoid real delays.
func (p *Policy) WithTimer(newTimer func() backoff.Timer) *Policy {
	cp := *p
	cp.newTimer = newTimer
	return &cp
}

// exponential builds the wait schedule: InitialDelay * BackoffFactor^n,
// capped at MaxDelay, with no elapsed-time limit.
func (p *Policy) exponential() *backoff.ExponentialBackOff {
	maxInterval := p.Config.MaxDelay
	if maxInterval <= 0 {
		maxInterval = time.Duration(math.MaxInt64)
	}
	randomization := 0.0
	if p.Config.Jitter {
		randomization = jitterFactor
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Config.InitialDelay,
		RandomizationFactor: randomization,
		Multiplier:          p.Config.BackoffFactor,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// CalculateDelay returns the wait before the given attempt (attempt 1 waits 0)
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	b := p.exponential()
	var delay time.Duration
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// ShouldRetry applies the classifier, never retrying cancellation
func (p *Policy) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return p.Classifier(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unchanged so callers
// can still inspect its type.
func Do[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out     T
		lastErr error
		attempt = 1
	)

	operation := func() error {
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		attempt++
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
	}

	var timer backoff.Timer
	if p.newTimer != nil {
		timer = p.newTimer()
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.Config.MaxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, schedule, notify, timer)
	if err == nil {
		return out, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && errors.Is(err, ctxErr) && !errors.Is(lastErr, ctxErr) {
		return zero, fmt.Errorf("retry cancelled: %w: %w", lastErr, ctxErr)
	}
	return zero, err
}
