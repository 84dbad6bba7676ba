package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/resilience"
)

// Config selects and tunes the provider
type Config struct {
	Provider          string                 `mapstructure:"provider"` // gemini | openai | template
	Model             string                 `mapstructure:"model"`
	APIKey            string                 `mapstructure:"api_key"`
	RequestsPerSecond float64                `mapstructure:"requests_per_second"`
	Burst             int                    `mapstructure:"burst"`
	Retry             resilience.RetryConfig `mapstructure:"retry"`
}

// New builds the provider generator wrapped in metrics, retry, breaker and
// rate-limit middleware (outermost first). The template provider is
// returned bare since it cannot fail.
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var base Generator
	switch provider {
	case "", ProviderTemplate:
		return TemplateGenerator{}, nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = "gemini-2.5-flash-lite"
		}
		base = NewGeminiGenerator(cfg.APIKey, model)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		base = NewOpenAIGenerator(cfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.GenerationRetry
	}

	mws := []Middleware{
		WithRetry(retry, provider, logger),
		WithBreaker(circuitbreaker.DefaultRegistry.NewBreaker(provider, "generator",
			circuitbreaker.GeneratorSettings().Config(IsRetryable), logger), provider),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		mws = append(mws, WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)))
	}
	mws = append(mws, WithMetrics(provider))

	logger.Info("Text generation provider configured",
		zap.String("provider", provider),
		zap.Float64("rps", cfg.RequestsPerSecond))
	return Chain(base, mws...), nil
}
