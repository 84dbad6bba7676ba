package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/app"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/config"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/health"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/httpapi"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $CONFIG_PATH or ./config/telecom.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap logger until the configured one exists
	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	loader := config.NewLoader(*configPath, bootLogger)
	cfg, err := loader.Load()
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.String("path", loader.Path()), zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("environment", cfg.Environment))

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble orchestrator", zap.Error(err))
	}
	loader.Watch(a.ApplyConfig)

	mux := httpapi.NewMux(httpapi.Routes{
		Query:     httpapi.NewQueryHandler(a.Orchestrator, a.Recorder, logger.Named("http")),
		Streaming: httpapi.NewStreamingHandler(a.Recorder, logger.Named("stream")),
		Health:    health.NewHTTPHandler(a.Health, logger.Named("health")),
	}, logger)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	failed := false
	select {
	case <-ctx.Done():
		logger.Info("Shutting down orchestrator service")
	case err := <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
		failed = true
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Streaming clients hold connections open; Shutdown waits up to the timeout.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		logger.Error("Failed to close components", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", zap.Error(err))
	}

	if failed {
		_ = logger.Sync()
		os.Exit(1)
	}
}
