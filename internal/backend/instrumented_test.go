package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/resilience"
)

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 1}

type flakyProfiles struct {
	*MockClient
	mu       sync.Mutex
	failures int
}

func (f *flakyProfiles) FetchProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return CustomerProfile{}, unavailable(CapProfile, errors.New("connection reset"))
	}
	f.mu.Unlock()
	return f.MockClient.FetchProfile(ctx, customerID)
}

func TestInstrumentedRecordsToolCalls(t *testing.T) {
	rec := observability.NewRecorder(zaptest.NewLogger(t))
	client := NewInstrumented(NewMockClient(DefaultDataset()), rec, zaptest.NewLogger(t), fastRetry)

	_, err := client.FetchPlanCatalog(context.Background(), "Delhi", 500)
	require.NoError(t, err)

	logs := rec.Report(0).Logs
	require.Len(t, logs, 1)
	assert.Equal(t, observability.EventToolCall, logs[0].Type)
	assert.Equal(t, CapCatalog, logs[0].Source)
	assert.Equal(t, "Delhi", logs[0].Details["region"])
	assert.Equal(t, 500.0, logs[0].Details["budget"])
}

func TestInstrumentedWithoutEventLogger(t *testing.T) {
	mock := NewMockClient(DefaultDataset())
	client := NewInstrumented(mock, nil, zaptest.NewLogger(t), fastRetry)

	p, err := client.FetchProfile(context.Background(), "CUST001")
	require.NoError(t, err)
	assert.Equal(t, "Rajesh Kumar", p.Name)

	_, err = client.FetchServiceStatus(context.Background(), "CUST404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, mock.Calls(CapProfile))
}

func TestInstrumentedRetriesUnavailableReads(t *testing.T) {
	rec := observability.NewRecorder(zaptest.NewLogger(t))
	flaky := &flakyProfiles{MockClient: NewMockClient(DefaultDataset()), failures: 2}
	client := NewInstrumented(flaky, rec, zaptest.NewLogger(t), fastRetry)

	p, err := client.FetchProfile(context.Background(), "CUST002")
	require.NoError(t, err)
	assert.Equal(t, "Priya Singh", p.Name)
	assert.Zero(t, flaky.failures)
}

func TestInstrumentedDoesNotRetryNotFound(t *testing.T) {
	rec := observability.NewRecorder(zaptest.NewLogger(t))
	mock := NewMockClient(DefaultDataset())
	client := NewInstrumented(mock, rec, zaptest.NewLogger(t), fastRetry)

	_, err := client.FetchBillingHistory(context.Background(), "CUST404", 6)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, mock.Calls(CapBilling))
}

func TestInstrumentedBreakerOpensOnUnavailable(t *testing.T) {
	rec := observability.NewRecorder(zaptest.NewLogger(t))
	mock := NewMockClient(DefaultDataset())
	mock.SetFault(CapPlanChange, &Error{Kind: KindUnavailable, Op: CapPlanChange, Msg: "provisioning offline"})
	client := NewInstrumented(mock, rec, zaptest.NewLogger(t), fastRetry)
	ctx := context.Background()

	threshold := int(circuitbreaker.BackendSettings().FailureThreshold)
	for i := 0; i < threshold; i++ {
		_, err := client.SubmitPlanChange(ctx, "CUST001", "Premium-399", time.Now())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, threshold, mock.Calls(CapPlanChange), "submissions are never retried")

	_, err := client.SubmitPlanChange(ctx, "CUST001", "Premium-399", time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, threshold, mock.Calls(CapPlanChange))
}

func TestInstrumentedSubmissionFailureDoesNotTrip(t *testing.T) {
	rec := observability.NewRecorder(zaptest.NewLogger(t))
	mock := NewMockClient(DefaultDataset())
	client := NewInstrumented(mock, rec, zaptest.NewLogger(t), fastRetry)

	for i := 0; i < 10; i++ {
		_, err := client.SubmitPlanChange(context.Background(), "CUST002", "Premium-999", time.Now())
		assert.ErrorIs(t, err, ErrSubmissionFailed)
	}
	assert.Equal(t, 10, mock.Calls(CapPlanChange))
}
