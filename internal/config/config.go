// Package config loads the service configuration with viper: a YAML file,
// defaults, and TELECOM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/resilience"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/session"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/tracing"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/workflows"
)

// DefaultPath is used when neither an explicit path nor CONFIG_PATH is set
const DefaultPath = "./config/telecom.yaml"

// Config is the full service configuration
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Session       session.Config      `mapstructure:"session"`
	Backend       BackendConfig       `mapstructure:"backend"`
	LLM           llm.Config          `mapstructure:"llm"`
	Workflow      workflows.Tunables  `mapstructure:"workflow"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Tracing       tracing.Config      `mapstructure:"tracing"`
	Compliance    ComplianceConfig    `mapstructure:"compliance"`
	Evaluation    EvaluationConfig    `mapstructure:"evaluation"`
}

// ServerConfig configures the HTTP listeners
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// BackendConfig configures the backend capability clients
type BackendConfig struct {
	CatalogFile string                 `mapstructure:"catalog_file"`
	Retry       resilience.RetryConfig `mapstructure:"retry"`
}

// ObservabilityConfig sizes the recorder and its optional audit sink
type ObservabilityConfig struct {
	LogCapacity int        `mapstructure:"log_capacity"`
	Sink        SinkConfig `mapstructure:"sink"`
}

// SinkConfig configures the Redis Streams audit sink
type SinkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Stream    string `mapstructure:"stream"`
	MaxLen    int64  `mapstructure:"max_len"`
	QueueSize int    `mapstructure:"queue_size"`
}

// ComplianceConfig points at an optional rego file replacing the built-in rules
type ComplianceConfig struct {
	PolicyFile string `mapstructure:"policy_file"`
}

// EvaluationConfig configures the evaluator CLI
type EvaluationConfig struct {
	CasesFile string `mapstructure:"cases_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.dsn", "")

	v.SetDefault("backend.catalog_file", "")
	v.SetDefault("backend.retry.max_attempts", resilience.BackendRetry.MaxAttempts)
	v.SetDefault("backend.retry.initial_delay", resilience.BackendRetry.InitialDelay)
	v.SetDefault("backend.retry.max_delay", resilience.BackendRetry.MaxDelay)
	v.SetDefault("backend.retry.backoff_factor", resilience.BackendRetry.BackoffFactor)
	v.SetDefault("backend.retry.jitter", resilience.BackendRetry.Jitter)

	v.SetDefault("llm.provider", llm.ProviderTemplate)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.retry.max_attempts", resilience.GenerationRetry.MaxAttempts)
	v.SetDefault("llm.retry.initial_delay", resilience.GenerationRetry.InitialDelay)
	v.SetDefault("llm.retry.max_delay", resilience.GenerationRetry.MaxDelay)
	v.SetDefault("llm.retry.backoff_factor", resilience.GenerationRetry.BackoffFactor)
	v.SetDefault("llm.retry.jitter", resilience.GenerationRetry.Jitter)

	d := workflows.DefaultTunables()
	v.SetDefault("workflow.max_iterations", d.MaxIterations)
	v.SetDefault("workflow.resolution_threshold", d.ResolutionThreshold)
	v.SetDefault("workflow.budget_ceiling", d.BudgetCeiling)
	v.SetDefault("workflow.bill_months", d.BillMonths)
	v.SetDefault("workflow.history_turns", d.HistoryTurns)

	v.SetDefault("observability.log_capacity", 1000)
	v.SetDefault("observability.sink.enabled", false)
	v.SetDefault("observability.sink.addr", "localhost:6379")
	v.SetDefault("observability.sink.password", "")
	v.SetDefault("observability.sink.db", 0)
	v.SetDefault("observability.sink.stream", "telecom:audit:events")
	v.SetDefault("observability.sink.max_len", 100000)
	v.SetDefault("observability.sink.queue_size", 1024)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "telecom-support-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("compliance.policy_file", "")
	v.SetDefault("evaluation.cases_file", "")
}

// Loader reads the configuration and optionally watches the file
type Loader struct {
	v      *viper.Viper
	path   string
	found  bool
	logger *zap.Logger

	mu      sync.Mutex
	current *Config
}

// NewLoader creates a loader for path. An empty path falls back to
// CONFIG_PATH and then DefaultPath.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TELECOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// Provider keys are commonly exported under their vendor names
	_ = v.BindEnv("llm.api_key", "TELECOM_LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY")

	return &Loader{v: v, path: path, logger: logger}
}

// Path returns the config file path
func (l *Loader) Path() string { return l.path }

// Load reads the file (a missing file leaves defaults and env in effect)
// and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		l.logger.Info("Config file not found, using defaults", zap.String("path", l.path))
	} else {
		l.found = true
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls onChange with each valid configuration written to the file.
// Invalid edits are logged and ignored. It does nothing when Load found no
// file.
func (l *Loader) Watch(onChange func(old, updated *Config)) {
	if !l.found {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			l.logger.Warn("Ignoring invalid config change",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}
		l.mu.Lock()
		old := l.current
		l.current = cfg
		l.mu.Unlock()

		l.logger.Info("Configuration reloaded",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()))
		onChange(old, cfg)
	})
	l.v.WatchConfig()
}

// Validate checks values that would break the service at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Session.Backend) {
	case "memory", "redis", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("session.backend %q is not one of memory, redis, sqlite, postgres", c.Session.Backend))
	}
	if strings.EqualFold(c.Session.Backend, "postgres") && c.Session.DSN == "" {
		errs = append(errs, errors.New("session.dsn is required for the postgres backend"))
	}
	if c.Workflow.MaxIterations < 0 {
		errs = append(errs, errors.New("workflow.max_iterations must not be negative"))
	}
	if c.Workflow.BudgetCeiling < 0 {
		errs = append(errs, errors.New("workflow.budget_ceiling must not be negative"))
	}
	if c.LLM.Retry.MaxAttempts < 0 || c.Backend.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts must not be negative"))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or console", c.Logging.Format))
	}
	return errors.Join(errs...)
}
