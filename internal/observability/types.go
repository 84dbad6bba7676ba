package observability

import (
	"encoding/json"
	"time"
)

// EventType classifies an audit event
type EventType string

const (
	EventStart                  EventType = "START"
	EventSuccess                EventType = "SUCCESS"
	EventError                  EventType = "ERROR"
	EventToolCall               EventType = "TOOL_CALL"
	EventClassificationDegraded EventType = "CLASSIFICATION_DEGRADED"
	EventPartialResult          EventType = "PARTIAL_RESULT"
	EventDegradedContext        EventType = "DEGRADED_CONTEXT"
	EventEscalated              EventType = "ESCALATED"
)

// Event is one structured log entry. Seq is assigned by the recorder and
// increases strictly in append order.
type Event struct {
	Seq       uint64                 `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Type      EventType              `json:"event_type"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Marshal returns the JSON form used by sinks and the websocket feed
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// TraceStep is a named, timed step inside a trace
type TraceStep struct {
	Step       string    `json:"step"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trace is the timeline of a single workflow run
type Trace struct {
	TraceID  string      `json:"trace_id"`
	Workflow string      `json:"workflow"`
	Start    time.Time   `json:"start"`
	Steps    []TraceStep `json:"steps"`
}

// Report is a point-in-time snapshot of the recorder
type Report struct {
	Logs      []Event            `json:"logs"`
	Traces    map[string]Trace   `json:"traces"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}
