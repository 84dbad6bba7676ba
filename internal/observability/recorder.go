package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
)

const (
	// DefaultReportLogs is the number of log events returned by Report when
	// the caller does not ask for a specific amount.
	DefaultReportLogs = 100

	defaultLogCapacity = 1000
)

// Option customizes a Recorder
type Option func(*Recorder)

// WithLogCapacity bounds the number of retained log events
func WithLogCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.logs = newRing(n)
		}
	}
}

// WithSink forwards every event to sink through an async queue
func WithSink(sink Sink, queueSize int) Option {
	return func(r *Recorder) {
		r.sink = newSinkQueue(sink, queueSize, r.logger)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder collects events, traces and metrics for one process. It is safe
// for concurrent use; each store has its own short critical section so
// unrelated requests never wait on each other for long.
type Recorder struct {
	logger *zap.Logger
	now    func() time.Time

	logMu sync.Mutex
	logs  *ring
	seq   uint64

	traces sync.Map // trace id -> *traceEntry

	metricMu sync.RWMutex
	values   map[string]float64

	subMu   sync.RWMutex
	subs    map[chan Event]struct{}
	closing atomic.Bool

	sink *sinkQueue
}

type traceEntry struct {
	mu    sync.Mutex
	trace Trace
	last  time.Time
}

// NewRecorder creates an empty recorder
func NewRecorder(logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		logger: logger,
		now:    time.Now,
		logs:   newRing(defaultLogCapacity),
		values: make(map[string]float64),
		subs:   make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogEvent appends a structured event and returns it with its sequence number.
func (r *Recorder) LogEvent(source string, eventType EventType, details map[string]interface{}) Event {
	ev := Event{
		Source:  source,
		Type:    eventType,
		Details: copyDetails(details),
	}

	r.logMu.Lock()
	r.seq++
	ev.Seq = r.seq
	ev.Timestamp = r.now()
	r.logs.push(ev)
	r.logMu.Unlock()

	metrics.ObservabilityEvents.WithLabelValues(string(eventType)).Inc()
	r.write(ev)
	r.publish(ev)
	if r.sink != nil {
		r.sink.enqueue(ev)
	}
	return ev
}

func (r *Recorder) write(ev Event) {
	fields := []zap.Field{
		zap.Uint64("seq", ev.Seq),
		zap.String("source", ev.Source),
		zap.String("event_type", string(ev.Type)),
		zap.Any("details", ev.Details),
	}
	switch ev.Type {
	case EventError:
		r.logger.Error("Observability event", fields...)
	case EventClassificationDegraded, EventDegradedContext, EventPartialResult, EventEscalated:
		r.logger.Warn("Observability event", fields...)
	default:
		r.logger.Info("Observability event", fields...)
	}
}

// StartTrace opens a new trace. Starting an existing id replaces it.
func (r *Recorder) StartTrace(traceID, workflow string) {
	start := r.now()
	r.traces.Store(traceID, &traceEntry{
		trace: Trace{TraceID: traceID, Workflow: workflow, Start: start, Steps: []TraceStep{}},
		last:  start,
	})
}

// AddTraceStep appends a step to the trace. Unknown ids are ignored.
// Step timestamps never go backwards within a trace.
func (r *Recorder) AddTraceStep(traceID, step string, durationMs float64) {
	v, ok := r.traces.Load(traceID)
	if !ok {
		r.logger.Debug("Trace step for unknown trace ignored",
			zap.String("trace_id", traceID),
			zap.String("step", step))
		return
	}
	entry := v.(*traceEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	ts := r.now()
	if ts.Before(entry.last) {
		ts = entry.last
	}
	entry.last = ts
	entry.trace.Steps = append(entry.trace.Steps, TraceStep{Step: step, DurationMs: durationMs, Timestamp: ts})
}

// Trace returns a copy of a trace
func (r *Recorder) Trace(traceID string) (Trace, bool) {
	v, ok := r.traces.Load(traceID)
	if !ok {
		return Trace{}, false
	}
	return v.(*traceEntry).snapshot(), true
}

func (e *traceEntry) snapshot() Trace {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.trace
	t.Steps = append([]TraceStep(nil), e.trace.Steps...)
	return t
}

// RecordMetric sets a named value; the last write wins.
func (r *Recorder) RecordMetric(name string, value float64) {
	r.metricMu.Lock()
	r.values[name] = value
	r.metricMu.Unlock()

	metrics.RecordedValues.WithLabelValues(name).Set(value)
}

// Metric returns the current value of a metric
func (r *Recorder) Metric(name string) (float64, bool) {
	r.metricMu.RLock()
	defer r.metricMu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Report returns the last n log events (DefaultReportLogs when n <= 0)
// together with every trace and metric.
func (r *Recorder) Report(n int) Report {
	if n <= 0 {
		n = DefaultReportLogs
	}

	r.logMu.Lock()
	logs := r.logs.last(n)
	r.logMu.Unlock()

	traces := make(map[string]Trace)
	r.traces.Range(func(key, value interface{}) bool {
		traces[key.(string)] = value.(*traceEntry).snapshot()
		return true
	})

	r.metricMu.RLock()
	values := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	r.metricMu.RUnlock()

	return Report{
		Logs:      logs,
		Traces:    traces,
		Metrics:   values,
		Timestamp: r.now(),
	}
}

// ReplaySince returns retained events with Seq > since
func (r *Recorder) ReplaySince(since uint64) []Event {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.logs.since(since)
}

// Subscribe registers a channel that receives every new event. Slow
// subscribers miss events instead of blocking writers. Callers must
// Unsubscribe when done.
func (r *Recorder) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel
func (r *Recorder) Unsubscribe(ch chan Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[ch]; ok {
		delete(r.subs, ch)
		close(ch)
	}
}

func (r *Recorder) publish(ev Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close flushes the sink queue
func (r *Recorder) Close() error {
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	if r.sink != nil {
		return r.sink.close()
	}
	return nil
}

func copyDetails(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
