package observability

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLogEventConcurrentAppends(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t), WithLogCapacity(5000))

	const workers, perWorker = 50, 20
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec.LogEvent(fmt.Sprintf("worker-%d", w), EventToolCall, map[string]interface{}{"i": i})
			}
		}(w)
	}
	wg.Wait()

	report := rec.Report(workers * perWorker)
	require.Len(t, report.Logs, workers*perWorker)

	seen := make(map[uint64]bool)
	for i, ev := range report.Logs {
		assert.False(t, seen[ev.Seq], "duplicate seq %d", ev.Seq)
		seen[ev.Seq] = true
		if i > 0 {
			assert.Greater(t, ev.Seq, report.Logs[i-1].Seq)
		}
	}
}

func TestReportReturnsLastN(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	for i := 0; i < 150; i++ {
		rec.LogEvent("orchestrator", EventStart, map[string]interface{}{"n": i})
	}

	report := rec.Report(0)
	require.Len(t, report.Logs, DefaultReportLogs)
	assert.Equal(t, uint64(51), report.Logs[0].Seq)
	assert.Equal(t, uint64(150), report.Logs[len(report.Logs)-1].Seq)

	assert.Len(t, rec.Report(10).Logs, 10)
}

func TestLogCapacityBoundsRetention(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t), WithLogCapacity(3))
	for i := 0; i < 5; i++ {
		rec.LogEvent("billing", EventSuccess, nil)
	}
	logs := rec.Report(10).Logs
	require.Len(t, logs, 3)
	assert.Equal(t, uint64(3), logs[0].Seq)
	assert.Equal(t, []Event{logs[1], logs[2]}, rec.ReplaySince(3))
}

func TestTraceStepsAreMonotonic(t *testing.T) {
	base := time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(2 * time.Second), base.Add(time.Second), base.Add(3 * time.Second)}
	idx := 0
	clock := func() time.Time {
		ts := times[idx%len(times)]
		idx++
		return ts
	}
	rec := NewRecorder(zaptest.NewLogger(t), WithClock(clock))

	rec.StartTrace("trace-1", "parallel")
	rec.AddTraceStep("trace-1", "RECEIVED", 1)
	rec.AddTraceStep("trace-1", "CLASSIFIED", 2)
	rec.AddTraceStep("trace-1", "RESPONDED", 3)

	tr, ok := rec.Trace("trace-1")
	require.True(t, ok)
	require.Len(t, tr.Steps, 3)
	assert.Equal(t, "parallel", tr.Workflow)
	for i := 1; i < len(tr.Steps); i++ {
		assert.False(t, tr.Steps[i].Timestamp.Before(tr.Steps[i-1].Timestamp))
	}
	assert.Equal(t, []string{"RECEIVED", "CLASSIFIED", "RESPONDED"},
		[]string{tr.Steps[0].Step, tr.Steps[1].Step, tr.Steps[2].Step})
}

func TestAddTraceStepUnknownTraceIsNoop(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	rec.AddTraceStep("missing", "RECEIVED", 1)

	_, ok := rec.Trace("missing")
	assert.False(t, ok)
	assert.Empty(t, rec.Report(0).Traces)
}

func TestConcurrentTraceSteps(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	for i := 0; i < 10; i++ {
		rec.StartTrace(fmt.Sprintf("t-%d", i), "iterative")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			wg.Add(1)
			go func(i, j int) {
				defer wg.Done()
				rec.AddTraceStep(fmt.Sprintf("t-%d", i), fmt.Sprintf("step-%d", j), float64(j))
			}(i, j)
		}
	}
	wg.Wait()

	report := rec.Report(0)
	require.Len(t, report.Traces, 10)
	for id, tr := range report.Traces {
		assert.Len(t, tr.Steps, 10, id)
	}
}

func TestRecordMetricLastWriteWins(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	rec.RecordMetric("evaluation_success_rate", 50)
	rec.RecordMetric("evaluation_success_rate", 100)

	v, ok := rec.Metric("evaluation_success_rate")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
	assert.Equal(t, 100.0, rec.Report(0).Metrics["evaluation_success_rate"])
}

func TestReportIsASnapshot(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	rec.StartTrace("t", "sequential")
	rec.AddTraceStep("t", "RECEIVED", 0)
	rec.RecordMetric("m", 1)

	report := rec.Report(0)
	rec.AddTraceStep("t", "CLASSIFIED", 0)
	rec.RecordMetric("m", 2)

	assert.Len(t, report.Traces["t"].Steps, 1)
	assert.Equal(t, 1.0, report.Metrics["m"])
}

func TestSubscribersReceiveEvents(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	ch := rec.Subscribe(4)

	rec.LogEvent("technical_support", EventEscalated, map[string]interface{}{"iterations": 3})

	select {
	case ev := <-ch:
		assert.Equal(t, EventEscalated, ev.Type)
		assert.Equal(t, "technical_support", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	rec.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// publishing after unsubscribe must not panic
	rec.LogEvent("technical_support", EventSuccess, nil)
}

type memorySink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *memorySink) Write(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestSinkReceivesEventsAndDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(zaptest.NewLogger(t), WithSink(sink, 64))

	for i := 0; i < 20; i++ {
		rec.LogEvent("orchestrator", EventSuccess, map[string]interface{}{"i": i})
	}
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.events, 20)
	assert.True(t, sink.closed)

	// events after close are not forwarded
	rec.LogEvent("orchestrator", EventSuccess, nil)
	assert.Len(t, sink.events, 20)
}

func TestLogEventCopiesDetails(t *testing.T) {
	rec := NewRecorder(zaptest.NewLogger(t))
	details := map[string]interface{}{"customer_id": "CUST001"}
	rec.LogEvent("billing", EventToolCall, details)
	details["customer_id"] = "CUST999"

	assert.Equal(t, "CUST001", rec.Report(1).Logs[0].Details["customer_id"])
}
