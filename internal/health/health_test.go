package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/session"
)

func fixed(name string, critical bool, status CheckStatus) Checker {
	return NewCustomChecker(name, critical, time.Second, func(ctx context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestManager_NoCheckersIsReady(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	overall := m.GetOverallHealth(context.Background())
	assert.Equal(t, StatusHealthy, overall.Status)
	assert.True(t, overall.Ready)
}

func TestManager_Aggregation(t *testing.T) {
	tests := []struct {
		name   string
		checks []Checker
		status CheckStatus
		ready  bool
	}{
		{"all healthy", []Checker{fixed("a", true, StatusHealthy), fixed("b", false, StatusHealthy)}, StatusHealthy, true},
		{"critical down", []Checker{fixed("a", true, StatusUnhealthy), fixed("b", false, StatusHealthy)}, StatusUnhealthy, false},
		{"non-critical down", []Checker{fixed("a", true, StatusHealthy), fixed("b", false, StatusUnhealthy)}, StatusDegraded, true},
		{"degraded", []Checker{fixed("a", true, StatusDegraded)}, StatusDegraded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(zaptest.NewLogger(t))
			for _, c := range tt.checks {
				require.NoError(t, m.RegisterChecker(c))
			}
			detailed := m.GetDetailedHealth(context.Background())
			assert.Equal(t, tt.status, detailed.Overall.Status)
			assert.Equal(t, tt.ready, detailed.Overall.Ready)
			assert.True(t, detailed.Overall.Live)
			assert.Equal(t, len(tt.checks), detailed.Summary.Total)
			assert.Len(t, m.GetLastResults(), len(tt.checks))
		})
	}
}

func TestManager_RejectsDuplicates(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(fixed("a", true, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(fixed("a", false, StatusHealthy)))
	assert.Error(t, m.RegisterChecker(fixed("", false, StatusHealthy)))
	assert.Equal(t, []string{"a"}, m.Checkers())
}

func TestManager_CheckPanicIsUnhealthy(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(NewCustomChecker("boom", true, time.Second, func(ctx context.Context) CheckResult {
		panic("kaput")
	})))
	detailed := m.GetDetailedHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, detailed.Components["boom"].Status)
	assert.Equal(t, "boom", detailed.Components["boom"].Component)
	assert.False(t, detailed.Overall.Ready)
}

func TestManager_CheckTimeoutApplied(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(NewCustomChecker("slow", true, 20*time.Millisecond, func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	})))
	start := time.Now()
	detailed := m.GetDetailedHealth(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, context.DeadlineExceeded.Error(), detailed.Components["slow"].Error)
}

func TestStoreChecker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewRedisStoreFromClient(client, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })

	checker := NewStoreChecker("session_store", store, zaptest.NewLogger(t))
	assert.True(t, checker.IsCritical())
	assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

	mr.Close()
	result := checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.NotEmpty(t, result.Error)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestStoreChecker_SlowIsDegraded(t *testing.T) {
	checker := NewStoreChecker("db", pingFunc(func(ctx context.Context) error {
		time.Sleep(slowThreshold + 20*time.Millisecond)
		return nil
	}), nil)
	assert.Equal(t, StatusDegraded, checker.Check(context.Background()).Status)
}

func TestBreakerChecker(t *testing.T) {
	reg := circuitbreaker.NewRegistry()
	cfg := circuitbreaker.DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.Timeout = time.Hour
	b := reg.NewBreaker("profile", "health-test", cfg, zaptest.NewLogger(t))

	checker := NewBreakerChecker(reg)
	assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	result := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Message, "health-test:profile")
	assert.False(t, checker.IsCritical())
}

func TestHTTPHandler_Routes(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(fixed("store", true, StatusUnhealthy)))
	mux := http.NewServeMux()
	NewHTTPHandler(m, zaptest.NewLogger(t)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cases := []struct {
		path string
		code int
	}{
		{"/health", http.StatusServiceUnavailable},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/health/live", http.StatusOK},
		{"/health/detailed", http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		resp, err := http.Get(srv.URL + c.path)
		require.NoError(t, err)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, c.code, resp.StatusCode, c.path)
	}

	resp, err := http.Get(srv.URL + "/health/detailed?cached=true")
	require.NoError(t, err)
	var detailed struct {
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detailed))
	resp.Body.Close()
	assert.Equal(t, "unhealthy", detailed.Components["store"].Status)

	resp, err = http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
