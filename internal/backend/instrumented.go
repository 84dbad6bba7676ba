package backend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/resilience"
)

// EventLogger is the slice of the recorder used by backend clients
type EventLogger interface {
	LogEvent(source string, eventType observability.EventType, details map[string]interface{}) observability.Event
}

type nopEvents struct{}

func (nopEvents) LogEvent(source string, eventType observability.EventType, details map[string]interface{}) observability.Event {
	return observability.Event{Source: source, Type: eventType, Details: details}
}

// Instrumented decorates a Client with TOOL_CALL events, Prometheus
// metrics, a circuit breaker per capability and retries for reads.
type Instrumented struct {
	next     Client
	events   EventLogger
	logger   *zap.Logger
	retry    *resilience.Policy
	breakers map[string]*circuitbreaker.Breaker
}

// NewInstrumented wraps next. Only Unavailable errors trip breakers or
// trigger retries; NotFound and SubmissionFailed are business outcomes.
func NewInstrumented(next Client, events EventLogger, logger *zap.Logger, retry resilience.RetryConfig) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopEvents{}
	}
	isUnavailable := func(err error) bool { return errors.Is(err, ErrUnavailable) }

	breakers := make(map[string]*circuitbreaker.Breaker)
	cfg := circuitbreaker.BackendSettings().Config(isUnavailable)
	for _, capability := range []string{CapProfile, CapCatalog, CapBilling, CapServiceStatus, CapPlanChange} {
		breakers[capability] = circuitbreaker.DefaultRegistry.NewBreaker(capability, "backend", cfg, logger)
	}

	return &Instrumented{
		next:   next,
		events: events,
		logger: logger,
		retry: resilience.NewPolicy(retry, func(err error) bool {
			return isUnavailable(err) && !errors.Is(err, circuitbreaker.ErrOpen)
		}),
		breakers: breakers,
	}
}

// call runs fn through the capability breaker, recording the outcome.
// Breaker rejections surface as Unavailable.
func call[T any](ctx context.Context, in *Instrumented, capability string, details map[string]interface{}, retry bool, fn func(ctx context.Context) (T, error)) (T, error) {
	in.events.LogEvent(capability, observability.EventToolCall, details)
	start := time.Now()

	guarded := func(ctx context.Context) (T, error) {
		var out T
		err := in.breakers[capability].Execute(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			err = unavailable(capability, err)
		}
		return out, err
	}

	var out T
	var err error
	if retry {
		out, err = resilience.Do(ctx, in.retry, guarded)
	} else {
		out, err = guarded(ctx)
	}

	metrics.BackendCallDuration.WithLabelValues(capability).Observe(float64(time.Since(start).Milliseconds()))
	result := "success"
	if err != nil {
		result = string(KindOf(err))
		if result == "" {
			result = "error"
		}
		in.logger.Debug("Backend call failed",
			zap.String("capability", capability),
			zap.String("kind", result),
			zap.Error(err))
	}
	metrics.BackendCalls.WithLabelValues(capability, result).Inc()
	return out, err
}

// FetchProfile implements ProfileReader
func (in *Instrumented) FetchProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	return call(ctx, in, CapProfile, map[string]interface{}{"customer_id": customerID}, true,
		func(ctx context.Context) (CustomerProfile, error) { return in.next.FetchProfile(ctx, customerID) })
}

// FetchPlanCatalog implements CatalogReader
func (in *Instrumented) FetchPlanCatalog(ctx context.Context, region string, budget float64) ([]PlanOffering, error) {
	return call(ctx, in, CapCatalog, map[string]interface{}{"region": region, "budget": budget}, true,
		func(ctx context.Context) ([]PlanOffering, error) {
			return in.next.FetchPlanCatalog(ctx, region, budget)
		})
}

// FetchBillingHistory implements BillingReader
func (in *Instrumented) FetchBillingHistory(ctx context.Context, customerID string, months int) ([]BillingRecord, error) {
	return call(ctx, in, CapBilling, map[string]interface{}{"customer_id": customerID, "months": months}, true,
		func(ctx context.Context) ([]BillingRecord, error) {
			return in.next.FetchBillingHistory(ctx, customerID, months)
		})
}

// FetchServiceStatus implements StatusProber
func (in *Instrumented) FetchServiceStatus(ctx context.Context, customerID string) (ServiceStatusSnapshot, error) {
	return call(ctx, in, CapServiceStatus, map[string]interface{}{"customer_id": customerID}, true,
		func(ctx context.Context) (ServiceStatusSnapshot, error) {
			return in.next.FetchServiceStatus(ctx, customerID)
		})
}

// SubmitPlanChange implements Provisioner. Submissions are not retried.
func (in *Instrumented) SubmitPlanChange(ctx context.Context, customerID, plan string, effectiveDate time.Time) (ChangeTicket, error) {
	details := map[string]interface{}{
		"customer_id":    customerID,
		"new_plan":       plan,
		"effective_date": effectiveDate.Format(DateLayout),
	}
	return call(ctx, in, CapPlanChange, details, false,
		func(ctx context.Context) (ChangeTicket, error) {
			return in.next.SubmitPlanChange(ctx, customerID, plan, effectiveDate)
		})
}
