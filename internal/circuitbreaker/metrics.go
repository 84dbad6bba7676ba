package circuitbreaker

import (
	"errors"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telecom_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "component"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_circuit_breaker_requests_total",
			Help: "Requests passed through or rejected by a circuit breaker",
		},
		[]string{"name", "component", "result"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telecom_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "component", "from_state", "to_state"},
	)
)

// Registry tracks breakers by component so their state can be exported
// and inspected by health checks.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// DefaultRegistry is used by the constructors in this package
var DefaultRegistry = NewRegistry()

// NewBreaker creates a breaker whose transitions and call results are
// exported under the given component label.
func (r *Registry) NewBreaker(name, component string, cfg Config, logger *zap.Logger) *Breaker {
	user := cfg.OnStateChange
	cfg.OnStateChange = func(n string, from, to State) {
		if user != nil {
			user(n, from, to)
		}
		breakerTransitions.WithLabelValues(name, component, from.String(), to.String()).Inc()
		breakerState.WithLabelValues(name, component).Set(float64(to))
	}

	b := New(name, cfg, logger)
	b.component = component
	breakerState.WithLabelValues(name, component).Set(float64(StateClosed))

	r.mu.Lock()
	r.breakers[component+":"+name] = b
	r.mu.Unlock()
	return b
}

// Open lists the keys ("component:name") of breakers currently open
func (r *Registry) Open() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for key, b := range r.breakers {
		if b.State() == StateOpen {
			open = append(open, key)
		}
	}
	sort.Strings(open)
	return open
}

// Get returns a registered breaker
func (r *Registry) Get(component, name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[component+":"+name]
	return b, ok
}

// recordResult exports the outcome of a guarded call
func recordResult(name, component string, err error) {
	result := "success"
	switch {
	case errors.Is(err, ErrOpen), errors.Is(err, ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	breakerRequests.WithLabelValues(name, component, result).Inc()
}
