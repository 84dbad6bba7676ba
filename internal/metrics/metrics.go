package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_queries_total",
			Help: "Total number of customer queries handled",
		},
		[]string{"category", "status"},
	)

	ClassificationDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telecom_classification_degraded_total",
			Help: "Classifications that fell back to the default category",
		},
	)

	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_workflows_started_total",
			Help: "Total number of workflow strategies started",
		},
		[]string{"workflow"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_workflows_completed_total",
			Help: "Total number of workflow strategies completed",
		},
		[]string{"workflow", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telecom_workflow_duration_seconds",
			Help:    "Workflow strategy duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	ResolutionIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telecom_resolution_iterations",
			Help:    "Iterations used by iterative resolution",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
	)

	// Backend metrics
	BackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_backend_calls_total",
			Help: "Backend capability calls by result",
		},
		[]string{"capability", "result"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telecom_backend_call_duration_ms",
			Help:    "Backend capability call duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"capability"},
	)

	// Generation metrics
	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_generation_attempts_total",
			Help: "Text generation attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	GenerationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_generation_retries_total",
			Help: "Text generation retries by provider",
		},
		[]string{"provider"},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telecom_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telecom_sessions_active",
			Help: "Sessions currently held in the local cache",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telecom_session_cache_hits_total",
			Help: "Session lookups served from the local cache",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telecom_session_cache_misses_total",
			Help: "Session lookups that went to the backing store",
		},
	)

	SessionLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telecom_session_lock_wait_seconds",
			Help:    "Time spent waiting for a per-session lock",
			Buckets: []float64{0.0005, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	// Recorder metrics
	RecordedValues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telecom_recorded_value",
			Help: "Last value written to the observability recorder for a metric name",
		},
		[]string{"name"},
	)

	ObservabilityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_observability_events_total",
			Help: "Observability events recorded by type",
		},
		[]string{"type"},
	)

	SinkDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telecom_observability_sink_dropped_total",
			Help: "Events dropped because the sink queue was full",
		},
	)

	// Evaluation metrics
	EvaluationSuccessRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telecom_evaluation_success_rate",
			Help: "Success rate (percent) of the last evaluation run",
		},
	)
)
