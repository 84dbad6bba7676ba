package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/tracing"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/workflows"
)

const (
	maxQueryBody      = 64 << 10
	traceparentHeader = "traceparent"
)

// QueryService answers customer queries
type QueryService interface {
	HandleQuery(ctx context.Context, customerID, query, sessionID string) workflows.Response
}

// ReportSource returns observability snapshots
type ReportSource interface {
	Report(n int) observability.Report
}

// QueryRequest is the body of POST /v1/query
type QueryRequest struct {
	CustomerID string `json:"customer_id"`
	Query      string `json:"query"`
	SessionID  string `json:"session_id,omitempty"`
}

// QueryHandler serves the query and report endpoints.
type QueryHandler struct {
	svc    QueryService
	report ReportSource
	logger *zap.Logger
}

func NewQueryHandler(svc QueryService, report ReportSource, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{svc: svc, report: report, logger: logger}
}

// RegisterRoutes registers the query routes on the provided mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/query", h.handleQuery)
	mux.HandleFunc("/v1/report", h.handleReport)
}

// handleQuery runs one turn. Domain failures come back as a 200 with
// status "error" in the body; only malformed requests get a 4xx.
// POST /v1/query
func (h *QueryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := tracing.ContextWithTraceparent(r.Context(), r.Header.Get(traceparentHeader))
	ctx, span := tracing.StartHTTPSpan(ctx, r.Method, "/v1/query")
	defer span.End()
	if tp := tracing.W3CTraceparent(ctx); tp != "" {
		w.Header().Set(traceparentHeader, tp)
	}

	var req QueryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxQueryBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body required")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	span.SetAttributes(attribute.String("telecom.customer_id", req.CustomerID))

	resp := h.svc.HandleQuery(ctx, req.CustomerID, req.Query, req.SessionID)
	span.SetAttributes(
		attribute.String("telecom.status", string(resp.Status)),
		attribute.String("telecom.trace_id", resp.TraceID),
	)
	h.logger.Debug("Query handled",
		zap.String("customer_id", req.CustomerID),
		zap.String("trace_id", resp.TraceID),
		zap.String("status", string(resp.Status)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// handleReport returns the recorder snapshot.
// GET /v1/report?limit=N
func (h *QueryHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.report.Report(limit))
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
