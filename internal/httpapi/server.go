package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/health"
)

// Routes holds the handlers mounted on the public server
type Routes struct {
	Query     *QueryHandler
	Streaming *StreamingHandler
	Health    *health.HTTPHandler
}

// NewMux builds the server mux: query and report, the event feed, health
// probes and the Prometheus endpoint.
func NewMux(routes Routes, logger *zap.Logger) *http.ServeMux {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	if routes.Query != nil {
		routes.Query.RegisterRoutes(mux)
	}
	if routes.Streaming != nil {
		routes.Streaming.RegisterRoutes(mux)
	}
	if routes.Health != nil {
		routes.Health.RegisterRoutes(mux)
	}
	mux.Handle("/metrics", promhttp.Handler())
	logger.Debug("HTTP routes registered")
	return mux
}
