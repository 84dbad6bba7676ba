// Package agents contains the query classifier and the specialist
// handlers that turn gathered account data into a customer reply.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
)

// Keys of strategy output shared with handlers
const (
	KeyProfile       = "profile"
	KeyBilling       = "billing"
	KeyServiceStatus = "service_status"
	KeyCatalog       = "available_plans"
	KeyTicket        = "request_status"
	KeyResolution    = "resolution"
	KeyPipeline      = "pipeline"
)

// HandlerContext carries what the orchestrator already knows about the turn
type HandlerContext struct {
	SessionID string
	Workflow  string
	// Data holds strategy output by key; handlers reuse it instead of
	// fetching the same record twice.
	Data map[string]interface{}
	// Failed holds keys the strategy already tried and could not fetch;
	// handlers degrade on them without calling the backend again.
	Failed  map[string]error
	History []string
}

// Handler produces the reply for one category of query
type Handler interface {
	Name() string
	Handle(ctx context.Context, customerID, query string, hc HandlerContext) (string, error)
}

// Deps are the collaborators shared by every specialist
type Deps struct {
	Client    backend.Client
	Generator llm.Generator
	Events    backend.EventLogger
	Logger    *zap.Logger
}

type specialist struct {
	name        string
	instruction string
	deps        Deps
}

func newSpecialist(name, instruction string, deps Deps) specialist {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return specialist{name: name, instruction: instruction, deps: deps}
}

// Name implements Handler
func (s *specialist) Name() string { return s.name }

// factSheet is the context block handed to the generator
type factSheet struct {
	customerID string
	sections   []section
	notes      []string
}

type section struct {
	key   string
	value interface{}
}

func (f *factSheet) add(key string, value interface{}) {
	f.sections = append(f.sections, section{key: key, value: value})
}

func (f *factSheet) note(format string, args ...interface{}) {
	f.notes = append(f.notes, fmt.Sprintf(format, args...))
}

// gather returns hc.Data[key] when present. A key listed in hc.Failed is
// degraded straight away; otherwise fetch is called. A fetch failure
// becomes a note and a DEGRADED_CONTEXT event instead of an error.
func gather[T any](ctx context.Context, s *specialist, facts *factSheet, hc HandlerContext, key string, fetch func(ctx context.Context) (T, error)) (T, bool) {
	var zero T
	if v, ok := hc.Data[key].(T); ok {
		facts.add(key, v)
		return v, true
	}
	if err, ok := hc.Failed[key]; ok && err != nil {
		s.degrade(facts, key, err)
		return zero, false
	}

	v, err := fetch(ctx)
	if err != nil {
		s.degrade(facts, key, err)
		return zero, false
	}
	facts.add(key, v)
	return v, true
}

func (s *specialist) degrade(facts *factSheet, key string, err error) {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		facts.note("We're sorry, we could not find the %s for customer %s. Apologise and ask the customer to confirm their customer ID.", strings.ReplaceAll(key, "_", " "), facts.customerID)
	default:
		facts.note("The %s is temporarily unavailable. Answer with the information available and offer to follow up.", strings.ReplaceAll(key, "_", " "))
	}
	if s.deps.Events != nil {
		s.deps.Events.LogEvent(s.name, observability.EventDegradedContext, map[string]interface{}{
			"customer_id": facts.customerID,
			"missing":     key,
			"kind":        string(backend.KindOf(err)),
			"error":       err.Error(),
		})
	}
	s.deps.Logger.Warn("Handler context degraded",
		zap.String("handler", s.name),
		zap.String("missing", key),
		zap.Error(err))
}

func (s *specialist) respond(ctx context.Context, query string, hc HandlerContext, facts *factSheet) (string, error) {
	out, err := s.deps.Generator.Generate(ctx, s.instruction, buildPrompt(query, hc, facts))
	if err != nil {
		return "", fmt.Errorf("%s: generate response: %w", s.name, err)
	}
	return strings.TrimSpace(out), nil
}

func buildPrompt(query string, hc HandlerContext, facts *factSheet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer ID: %s\n", facts.customerID)
	fmt.Fprintf(&b, "Customer query: %s\n", query)
	if hc.Workflow != "" {
		fmt.Fprintf(&b, "Workflow: %s\n", hc.Workflow)
	}

	if len(facts.sections) > 0 {
		b.WriteString("\nContext:\n")
		for _, sec := range facts.sections {
			raw, err := json.Marshal(sec.value)
			if err != nil {
				raw = []byte(fmt.Sprintf("%v", sec.value))
			}
			fmt.Fprintf(&b, "%s: %s\n", sec.key, raw)
		}
	}
	if len(facts.notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range facts.notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	if len(hc.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, h := range hc.History {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}
