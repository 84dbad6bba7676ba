package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
)

// EventSource is the live side of the observability recorder
type EventSource interface {
	Subscribe(buffer int) chan observability.Event
	Unsubscribe(ch chan observability.Event)
	ReplaySince(since uint64) []observability.Event
}

// StreamingHandler serves the live audit event feed over SSE and websocket.
type StreamingHandler struct {
	src       EventSource
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewStreamingHandler(src EventSource, logger *zap.Logger) *StreamingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingHandler{src: src, logger: logger, heartbeat: 15 * time.Second}
}

// RegisterRoutes registers SSE and websocket routes on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events/sse", h.handleSSE)
	h.RegisterWebSocket(mux)
}

// streamFilter holds the query options shared by both transports
type streamFilter struct {
	types  map[observability.EventType]struct{}
	source string
	lastID uint64
}

func parseFilter(r *http.Request) streamFilter {
	f := streamFilter{types: map[observability.EventType]struct{}{}, source: r.URL.Query().Get("source")}
	if s := r.URL.Query().Get("types"); s != "" {
		for _, t := range strings.Split(s, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				f.types[observability.EventType(strings.ToUpper(t))] = struct{}{}
			}
		}
	}
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			f.lastID = n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" && f.lastID == 0 {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			f.lastID = n
		}
	}
	return f
}

func (f streamFilter) match(ev observability.Event) bool {
	if len(f.types) > 0 {
		if _, ok := f.types[ev.Type]; !ok {
			return false
		}
	}
	return f.source == "" || f.source == ev.Source
}

// handleSSE streams recorder events via Server-Sent Events.
// GET /v1/events/sse?types=ERROR,ESCALATED&last_event_id=<seq>
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before replaying so nothing falls between the two.
	ch := h.src.Subscribe(256)
	defer h.src.Unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	var sent uint64
	if filter.lastID > 0 {
		for _, ev := range h.src.ReplaySince(filter.lastID) {
			if filter.match(ev) {
				writeSSE(w, ev)
			}
			sent = ev.Seq
		}
		flusher.Flush()
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Seq <= sent || !filter.match(ev) {
				continue
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-hb.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev observability.Event) {
	fmt.Fprintf(w, "id: %d\n", ev.Seq)
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", ev.Marshal())
}
