package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/resilience"
)

// WithRetry retries provider errors whose status is in RetryableStatusCodes
func WithRetry(cfg resilience.RetryConfig, provider string, logger *zap.Logger) Middleware {
	policy := resilience.NewPolicy(cfg, func(err error) bool {
		return IsRetryable(err) && !errors.Is(err, circuitbreaker.ErrOpen)
	})
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.GenerationRetries.WithLabelValues(provider).Inc()
		logger.Warn("Retrying text generation",
			zap.String("provider", provider),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return withPolicy(policy)
}

func withPolicy(policy *resilience.Policy) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, instruction, prompt string) (string, error) {
			return resilience.Do(ctx, policy, func(ctx context.Context) (string, error) {
				return next.Generate(ctx, instruction, prompt)
			})
		})
	}
}

// WithRateLimit waits on a token bucket before each provider call
func WithRateLimit(limiter *rate.Limiter) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, instruction, prompt string) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
			return next.Generate(ctx, instruction, prompt)
		})
	}
}

// WithBreaker fails fast while the provider breaker is open. Rejections
// surface as a 503 service error so callers treat them like an outage.
func WithBreaker(b *circuitbreaker.Breaker, provider string) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, instruction, prompt string) (string, error) {
			var out string
			err := b.Execute(ctx, func(ctx context.Context) error {
				var err error
				out, err = next.Generate(ctx, instruction, prompt)
				return err
			})
			if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
				return "", &Error{Kind: KindServiceError, Provider: provider, StatusCode: 503, Err: err}
			}
			return out, err
		})
	}
}

// WithMetrics counts attempts by provider and result
func WithMetrics(provider string) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, instruction, prompt string) (string, error) {
			out, err := next.Generate(ctx, instruction, prompt)
			result := "success"
			var e *Error
			switch {
			case errors.As(err, &e):
				result = string(e.Kind)
			case err != nil:
				result = "error"
			}
			metrics.GenerationAttempts.WithLabelValues(provider, result).Inc()
			return out, err
		})
	}
}
