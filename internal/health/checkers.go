package health

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
)

// slowThreshold marks a reachable dependency as degraded
const slowThreshold = 100 * time.Millisecond

// Pinger is satisfied by the Redis and SQL session stores
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker pings a session store backend
type StoreChecker struct {
	name     string
	store    Pinger
	critical bool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewStoreChecker creates a checker for a pingable store. Session storage
// is critical: turns cannot be persisted without it.
func NewStoreChecker(name string, store Pinger, logger *zap.Logger) *StoreChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreChecker{name: name, store: store, critical: true, timeout: 5 * time.Second, logger: logger}
}

func (s *StoreChecker) Name() string           { return s.name }
func (s *StoreChecker) IsCritical() bool       { return s.critical }
func (s *StoreChecker) Timeout() time.Duration { return s.timeout }

func (s *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := s.store.Ping(ctx)
	latency := time.Since(start)

	result := CheckResult{Details: map[string]interface{}{"latency_ms": latency.Milliseconds()}}
	switch {
	case err != nil:
		s.logger.Warn("Session store ping failed", zap.String("checker", s.name), zap.Error(err))
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "ping failed"
	case latency > slowThreshold:
		result.Status = StatusDegraded
		result.Message = "responding with high latency"
	default:
		result.Status = StatusHealthy
		result.Message = "reachable"
	}
	return result
}

// BreakerChecker reports circuit breakers that are currently open. An open
// breaker degrades the service but does not take it out of rotation.
type BreakerChecker struct {
	registry *circuitbreaker.Registry
}

// NewBreakerChecker creates a checker over a breaker registry
func NewBreakerChecker(registry *circuitbreaker.Registry) *BreakerChecker {
	if registry == nil {
		registry = circuitbreaker.DefaultRegistry
	}
	return &BreakerChecker{registry: registry}
}

func (b *BreakerChecker) Name() string           { return "circuit_breakers" }
func (b *BreakerChecker) IsCritical() bool       { return false }
func (b *BreakerChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerChecker) Check(ctx context.Context) CheckResult {
	open := b.registry.Open()
	if len(open) == 0 {
		return CheckResult{Status: StatusHealthy, Message: "all breakers closed"}
	}
	return CheckResult{
		Status:  StatusDegraded,
		Message: "open: " + strings.Join(open, ", "),
		Details: map[string]interface{}{"open": open},
	}
}

// CustomChecker adapts a function into a Checker
type CustomChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	checkFn  func(ctx context.Context) CheckResult
}

// NewCustomChecker creates a checker from a function
func NewCustomChecker(name string, critical bool, timeout time.Duration, checkFn func(ctx context.Context) CheckResult) *CustomChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CustomChecker{name: name, critical: critical, timeout: timeout, checkFn: checkFn}
}

func (c *CustomChecker) Name() string           { return c.name }
func (c *CustomChecker) IsCritical() bool       { return c.critical }
func (c *CustomChecker) Timeout() time.Duration { return c.timeout }

func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	return c.checkFn(ctx)
}
