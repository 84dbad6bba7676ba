package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "telecom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), zaptest.NewLogger(t))
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "template", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.LLM.Retry.InitialDelay)
	assert.Equal(t, 7.0, cfg.LLM.Retry.BackoffFactor)
	assert.Equal(t, 3, cfg.Workflow.MaxIterations)
	assert.Equal(t, 2, cfg.Workflow.ResolutionThreshold)
	assert.Equal(t, backend.DefaultBudget, cfg.Workflow.BudgetCeiling)
	assert.Equal(t, "telecom:audit:events", cfg.Observability.Sink.Stream)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9090
session:
  backend: sqlite
  dsn: "file:test.db"
workflow:
  max_iterations: 5
  budget_ceiling: 300
llm:
  retry:
    initial_delay: 250ms
`)
	cfg, err := NewLoader(path, zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	assert.Equal(t, 300.0, cfg.Workflow.BudgetCeiling)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.Retry.InitialDelay)
	// Untouched keys keep defaults
	assert.Equal(t, 2, cfg.Workflow.ResolutionThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELECOM_SERVER_PORT", "7070")
	t.Setenv("TELECOM_WORKFLOW_RESOLUTION_THRESHOLD", "3")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "none.yaml"), nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Workflow.ResolutionThreshold)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server:\n  port: 6060\n")
	t.Setenv("CONFIG_PATH", path)

	l := NewLoader("", nil)
	assert.Equal(t, path, l.Path())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader(writeConfig(t, dir, "server: [unterminated"), nil).Load()
	assert.Error(t, err)

	_, err = NewLoader(writeConfig(t, dir, "session:\n  backend: cassandra\n"), nil).Load()
	assert.ErrorContains(t, err, "session.backend")

	_, err = NewLoader(writeConfig(t, dir, "session:\n  backend: postgres\n"), nil).Load()
	assert.ErrorContains(t, err, "session.dsn")
}

func TestWatch_ReloadsTunables(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "workflow:\n  max_iterations: 3\n")
	l := NewLoader(path, zaptest.NewLogger(t))
	_, err := l.Load()
	require.NoError(t, err)

	var latest atomic.Int64
	l.Watch(func(_, updated *Config) {
		latest.Store(int64(updated.Workflow.MaxIterations))
	})

	require.NoError(t, os.WriteFile(path, []byte("workflow:\n  max_iterations: 7\n"), 0o644))
	assert.Eventually(t, func() bool { return latest.Load() == 7 }, 5*time.Second, 20*time.Millisecond)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
