// Command evaluate replays scripted customer queries through a freshly
// assembled orchestrator and prints the scored report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/app"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/config"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/evaluation"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	casesPath := flag.String("cases", "", "YAML file with evaluation cases (overrides evaluation.cases_file)")
	minRate := flag.Float64("min-success-rate", 0, "exit non-zero when the success rate (percent) is below this")
	reportLimit := flag.Int("report-logs", 20, "observability log entries to include in the output")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	cfg, err := config.NewLoader(*configPath, bootLogger).Load()
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble orchestrator", zap.Error(err))
	}
	defer a.Close()

	cases := evaluation.DefaultCases()
	path := cfg.Evaluation.CasesFile
	if *casesPath != "" {
		path = *casesPath
	}
	if path != "" {
		cases, err = evaluation.LoadCaseFile(path)
		if err != nil {
			logger.Fatal("Failed to load evaluation cases", zap.String("path", path), zap.Error(err))
		}
	}

	ev := evaluation.New(a.Recorder, logger.Named("evaluation"))
	for _, tc := range cases {
		ev.Add(tc)
	}
	report := ev.Run(ctx, a.Orchestrator)

	out := struct {
		Evaluation    evaluation.Report `json:"evaluation"`
		Observability interface{}       `json:"observability"`
	}{report, a.Recorder.Report(*reportLimit)}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("Failed to write report", zap.Error(err))
	}

	if report.SuccessRate < *minRate {
		logger.Warn("Success rate below threshold",
			zap.Float64("success_rate", report.SuccessRate),
			zap.Float64("min", *minRate))
		_ = a.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}
