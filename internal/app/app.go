// Package app assembles the orchestrator and its collaborators from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/config"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/health"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/session"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/workflows"
)

// App is a fully wired orchestrator
type App struct {
	Orchestrator *workflows.Orchestrator
	Recorder     *observability.Recorder
	Sessions     session.Store
	Backend      *backend.MockClient
	Health       *health.Manager

	logger  *zap.Logger
	closers []func() error
}

// Build wires every component described by cfg
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger, Health: health.NewManager(logger)}

	recOpts := []observability.Option{observability.WithLogCapacity(cfg.Observability.LogCapacity)}
	if sc := cfg.Observability.Sink; sc.Enabled {
		sink, err := observability.DialRedisStreamSink(ctx, sc.Addr, sc.Password, sc.DB, sc.Stream, sc.MaxLen)
		if err != nil {
			// The audit stream is optional; the in-memory log keeps working.
			logger.Warn("Audit sink unavailable, continuing without it",
				zap.String("addr", sc.Addr), zap.Error(err))
		} else {
			recOpts = append(recOpts, observability.WithSink(sink, sc.QueueSize))
		}
	}
	a.Recorder = observability.NewRecorder(logger.Named("recorder"), recOpts...)
	a.closers = append(a.closers, a.Recorder.Close)

	a.Backend = backend.NewMockClient(backend.DefaultDataset())
	if path := cfg.Backend.CatalogFile; path != "" {
		catalogs, err := backend.LoadCatalogFile(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		for region, plans := range catalogs {
			a.Backend.SetCatalog(region, plans)
		}
		logger.Info("Plan catalog loaded", zap.String("path", path), zap.Int("regions", len(catalogs)))
	}
	client := backend.NewInstrumented(a.Backend, a.Recorder, logger.Named("backend"), cfg.Backend.Retry)

	gen, err := llm.New(cfg.LLM, logger.Named("llm"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("text generator: %w", err)
	}
	classifierGen := gen
	if p := strings.ToLower(cfg.LLM.Provider); p == "" || p == llm.ProviderTemplate {
		classifierGen = agents.KeywordGenerator{}
	}

	policy, err := compliancePolicy(ctx, cfg.Compliance.PolicyFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Sessions, err = session.Open(ctx, cfg.Session, logger.Named("session"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.closers = append(a.closers, a.Sessions.Close)
	if p, ok := a.Sessions.(health.Pinger); ok {
		_ = a.Health.RegisterChecker(health.NewStoreChecker("session_store", p, logger))
	}
	_ = a.Health.RegisterChecker(health.NewBreakerChecker(circuitbreaker.DefaultRegistry))

	var orch *workflows.Orchestrator
	budget := func() float64 { return orch.Budget() }
	deps := agents.Deps{Client: client, Generator: gen, Events: a.Recorder, Logger: logger.Named("agents")}
	orch, err = workflows.New(workflows.Deps{
		Classifier: agents.NewClassifier(classifierGen),
		Handlers:   workflows.DefaultHandlers(deps, policy, budget),
		Client:     client,
		Sessions:   a.Sessions,
		Recorder:   a.Recorder,
		Logger:     logger.Named("orchestrator"),
	}, workflows.WithTunables(cfg.Workflow))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	logger.Info("Orchestrator assembled",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("audit_sink", cfg.Observability.Sink.Enabled),
	)
	return a, nil
}

func compliancePolicy(ctx context.Context, path string) (*agents.CompliancePolicy, error) {
	if path == "" {
		return agents.NewCompliancePolicy(ctx)
	}
	p, err := agents.LoadCompliancePolicy(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("compliance policy %s: %w", path, err)
	}
	return p, nil
}

// ApplyConfig pushes reloadable settings into the running orchestrator
func (a *App) ApplyConfig(old, updated *config.Config) {
	if old != nil && old.Workflow == updated.Workflow {
		return
	}
	a.Orchestrator.SetTunables(updated.Workflow)
	a.logger.Info("Workflow tunables updated",
		zap.Int("max_iterations", updated.Workflow.MaxIterations),
		zap.Int("resolution_threshold", updated.Workflow.ResolutionThreshold),
		zap.Float64("budget_ceiling", updated.Workflow.BudgetCeiling),
	)
}

// Close releases stores and flushes the audit sink, last opened first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
