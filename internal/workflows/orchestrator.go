// Package workflows routes customer queries through a workflow strategy
// and a specialist handler, persisting each turn in the session store.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/session"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/tracing"
)

const (
	// DefaultAppID scopes session keys created by the orchestrator
	DefaultAppID = "telecom_support"

	sourceHandleQuery = "handle_query"

	transientFailureMessage = "transient failure: the assistant is busy right now, please try again in a moment"
)

// Classifier maps a query to a category. A non-nil error means the
// returned category is a fallback.
type Classifier interface {
	Classify(ctx context.Context, query string) (agents.Category, error)
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Classifier Classifier
	Handlers   map[agents.Category]agents.Handler
	Client     backend.Client
	Sessions   session.Store
	Recorder   *observability.Recorder
	Logger     *zap.Logger
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithResolutionPolicy replaces the threshold policy used by iterative resolution
func WithResolutionPolicy(p ResolutionPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithTunables sets the initial workflow parameters
func WithTunables(t Tunables) Option {
	return func(o *Orchestrator) { o.SetTunables(t) }
}

// WithAppID overrides the session app id
func WithAppID(appID string) Option {
	return func(o *Orchestrator) { o.appID = appID }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator handles one customer turn end to end
type Orchestrator struct {
	classifier Classifier
	handlers   map[agents.Category]agents.Handler
	client     backend.Client
	sessions   session.Store
	locks      *session.Locker
	recorder   *observability.Recorder
	logger     *zap.Logger

	appID    string
	policy   ResolutionPolicy
	tunables atomic.Pointer[Tunables]
	now      func() time.Time
}

// New validates deps and builds an orchestrator
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Classifier == nil || deps.Client == nil || deps.Sessions == nil || deps.Recorder == nil {
		return nil, errors.New("orchestrator requires classifier, backend client, session store and recorder")
	}
	for _, c := range agents.Categories {
		if deps.Handlers[c] == nil {
			return nil, fmt.Errorf("no handler registered for category %s", c)
		}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	o := &Orchestrator{
		classifier: deps.Classifier,
		handlers:   deps.Handlers,
		client:     deps.Client,
		sessions:   deps.Sessions,
		locks:      session.NewLocker(),
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		appID:      DefaultAppID,
		now:        time.Now,
	}
	o.SetTunables(DefaultTunables())
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// DefaultHandlers builds the category routing table
func DefaultHandlers(deps agents.Deps, compliance *agents.CompliancePolicy, budget func() float64) map[agents.Category]agents.Handler {
	advisor := agents.NewPlanAdvisorHandler(deps, budget)
	return map[agents.Category]agents.Handler{
		agents.CategoryBilling:          agents.NewBillingHandler(deps),
		agents.CategoryPlanChange:       advisor,
		agents.CategoryTechnical:        agents.NewTechnicalHandler(deps),
		agents.CategoryServiceComplaint: agents.NewComplianceHandler(deps, compliance),
		agents.CategoryGeneralInfo:      advisor,
	}
}

// SetTunables replaces the workflow parameters; safe to call while
// queries are in flight.
func (o *Orchestrator) SetTunables(t Tunables) {
	t = t.withDefaults()
	o.tunables.Store(&t)
}

// Tunables returns the current workflow parameters
func (o *Orchestrator) Tunables() Tunables {
	return *o.tunables.Load()
}

// Budget returns the current plan budget ceiling
func (o *Orchestrator) Budget() float64 {
	return o.Tunables().BudgetCeiling
}

// Recorder returns the observability recorder
func (o *Orchestrator) Recorder() *observability.Recorder {
	return o.recorder
}

// turn carries per-request state through HandleQuery
type turn struct {
	traceID  string
	lastStep time.Time
	stage    string
}

// HandleQuery answers one customer query. It never returns an error;
// failures are reported in the Response with StatusError.
func (o *Orchestrator) HandleQuery(ctx context.Context, customerID, query, sessionID string) (resp Response) {
	start := o.now()
	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%s_%s", customerID, start.Format("20060102150405"))
	}
	t := &turn{traceID: uuid.NewString(), lastStep: start, stage: StepReceived}
	resp = Response{
		CustomerID: customerID,
		SessionID:  sessionID,
		TraceID:    t.traceID,
		Timestamp:  start,
	}

	ctx, span := tracing.StartSpan(ctx, "orchestrator.handle_query",
		attribute.String("customer_id", customerID),
		attribute.String("session_id", sessionID),
		attribute.String("trace_id", t.traceID),
	)
	defer span.End()

	o.recorder.StartTrace(t.traceID, sourceHandleQuery)
	o.recorder.LogEvent(sourceHandleQuery, observability.EventStart, map[string]interface{}{
		"customer_id": customerID,
		"session_id":  sessionID,
		"trace_id":    t.traceID,
	})
	o.step(t, StepReceived)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic while handling query",
				zap.String("trace_id", t.traceID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = o.fail(t, resp, fmt.Errorf("internal error: %v", r))
		}
		status := string(resp.Status)
		category := string(resp.Category)
		if category == "" {
			category = "unclassified"
		}
		metrics.QueriesTotal.WithLabelValues(category, status).Inc()
		elapsed := o.now().Sub(start)
		o.recorder.RecordMetric("handle_query_latency_ms", float64(elapsed.Milliseconds()))
		if resp.Status == StatusError {
			span.SetStatus(codes.Error, resp.Error)
		}
	}()

	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(query) == "" {
		return o.fail(t, resp, errors.New("customer id and query are required"))
	}

	unlock, err := o.locks.Lock(ctx, session.Key{AppID: o.appID, UserID: customerID, SessionID: sessionID}.String())
	if err != nil {
		return o.fail(t, resp, fmt.Errorf("acquire session lock: %w", err))
	}
	defer unlock()

	stored, err := o.sessions.GetOrCreate(ctx, o.appID, customerID, sessionID)
	if err != nil {
		return o.fail(t, resp, err)
	}
	working := stored.Clone()
	tun := o.Tunables()

	category, cerr := o.classifier.Classify(ctx, query)
	if cerr != nil {
		metrics.ClassificationDegraded.Inc()
		o.recorder.LogEvent("classifier", observability.EventClassificationDegraded, map[string]interface{}{
			"customer_id": customerID,
			"trace_id":    t.traceID,
			"fallback":    string(category),
			"error":       cerr.Error(),
		})
	}
	resp.Category = category
	o.step(t, StepClassified)

	wf := WorkflowFor(category)
	resp.Workflow = wf
	gathered, err := o.runStrategy(ctx, t, wf, customerID, query, tun, working)
	if err != nil {
		return o.fail(t, resp, err)
	}
	o.step(t, wf.step())

	handler := o.handlers[category]
	hc := agents.HandlerContext{
		SessionID: sessionID,
		Workflow:  string(wf),
		Data:      gathered.Data,
		Failed:    gathered.Failed,
		History:   historyLines(working.Recent(tun.HistoryTurns)),
	}
	text, err := handler.Handle(ctx, customerID, query, hc)
	if err != nil {
		return o.fail(t, resp, err)
	}
	o.step(t, StepMerged)

	working.AddMessage("user", query, map[string]interface{}{
		"category": string(category),
		"trace_id": t.traceID,
	})
	working.AddMessage("assistant", text, map[string]interface{}{
		"handler":  handler.Name(),
		"workflow": string(wf),
	})
	working.Turns++
	working.SetScratch("last_category", string(category))
	working.SetScratch("last_workflow", string(wf))
	if err := o.sessions.Save(ctx, working); err != nil {
		return o.fail(t, resp, err)
	}
	o.step(t, StepPersisted)

	resp.Status = StatusSuccess
	resp.Response = text
	o.step(t, StepResponded)
	o.recorder.LogEvent(sourceHandleQuery, observability.EventSuccess, map[string]interface{}{
		"customer_id": customerID,
		"session_id":  sessionID,
		"trace_id":    t.traceID,
		"category":    string(category),
		"workflow":    string(wf),
		"handler":     handler.Name(),
	})
	return resp
}

// runStrategy executes the workflow for wf and returns the handler context
// data along with the keys it failed to fetch
func (o *Orchestrator) runStrategy(ctx context.Context, t *turn, wf Workflow, customerID, query string, tun Tunables, working *session.Session) (out GatherResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow."+string(wf), attribute.String("trace_id", t.traceID))
	defer span.End()

	start := o.now()
	metrics.WorkflowsStarted.WithLabelValues(string(wf)).Inc()
	o.recorder.LogEvent(string(wf), observability.EventStart, map[string]interface{}{
		"customer_id": customerID,
		"trace_id":    t.traceID,
	})
	t.stage = wf.step()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.SetStatus(codes.Error, err.Error())
		}
		elapsed := o.now().Sub(start)
		metrics.WorkflowsCompleted.WithLabelValues(string(wf), status).Inc()
		metrics.WorkflowDuration.WithLabelValues(string(wf)).Observe(elapsed.Seconds())
		o.recorder.RecordMetric(string(wf)+"_latency_ms", float64(elapsed.Milliseconds()))
	}()

	switch wf {
	case WorkflowSequential:
		return o.runSequential(ctx, t, customerID, query, tun, working)
	case WorkflowIterative:
		return o.runIterative(ctx, t, customerID, tun, working)
	default:
		res := ParallelGather(ctx, o.client, o.recorder, customerID, tun.BillMonths)
		if err := ctx.Err(); err != nil {
			return GatherResult{}, err
		}
		return res, nil
	}
}

func (o *Orchestrator) runSequential(ctx context.Context, t *turn, customerID, query string, tun Tunables, working *session.Session) (GatherResult, error) {
	res, err := SequentialPipeline(ctx, o.client, customerID, query, tun.BudgetCeiling, o.now())
	var perr *PipelineError
	if err != nil && !errors.As(err, &perr) {
		return GatherResult{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return GatherResult{}, ctxErr
	}

	data := map[string]interface{}{
		agents.KeyPipeline: res.summary(err),
	}
	if len(res.Completed) > 0 {
		data[agents.KeyProfile] = res.Profile
	}
	if len(res.Completed) > 1 {
		data[agents.KeyCatalog] = res.Catalog
	}
	if res.Ticket != nil {
		data[agents.KeyTicket] = *res.Ticket
		working.SetScratch("last_ticket_id", res.Ticket.ID)
	}

	failed := make(map[string]error)
	if perr != nil {
		switch perr.Step {
		case PipelineFetchProfile:
			failed[agents.KeyProfile] = perr.Err
		case PipelineFetchCatalog:
			failed[agents.KeyCatalog] = perr.Err
		}
		o.recorder.LogEvent(string(WorkflowSequential), observability.EventPartialResult, map[string]interface{}{
			"customer_id":    customerID,
			"trace_id":       t.traceID,
			"failed_step":    perr.Step,
			"completed_step": perr.Completed,
			"kind":           string(backend.KindOf(perr.Err)),
			"error":          perr.Err.Error(),
		})
	}
	return GatherResult{Data: data, Failed: failed}, nil
}

func (o *Orchestrator) runIterative(ctx context.Context, t *turn, customerID string, tun Tunables, working *session.Session) (GatherResult, error) {
	policy := o.policy
	if policy == nil {
		policy = ThresholdPolicy{Threshold: tun.ResolutionThreshold}
	}
	res, err := IterativeResolution(ctx, tun.MaxIterations, policy, func(a Attempt) {
		o.logger.Debug("Troubleshooting iteration",
			zap.String("trace_id", t.traceID),
			zap.Int("iteration", a.Iteration),
			zap.Strings("steps", a.Steps))
	})
	if err != nil {
		return GatherResult{}, err
	}
	metrics.ResolutionIterations.Observe(float64(res.Iterations))
	working.SetScratch("last_resolution", string(res.Status))

	if res.Status == OutcomeEscalate {
		o.recorder.LogEvent(string(WorkflowIterative), observability.EventEscalated, map[string]interface{}{
			"customer_id": customerID,
			"trace_id":    t.traceID,
			"iterations":  res.Iterations,
		})
	}
	return GatherResult{Data: map[string]interface{}{agents.KeyResolution: res}}, nil
}

// step appends a trace step timed from the previous one
func (o *Orchestrator) step(t *turn, name string) {
	now := o.now()
	o.recorder.AddTraceStep(t.traceID, name, float64(now.Sub(t.lastStep).Microseconds())/1000)
	t.lastStep = now
	t.stage = name
}

func (o *Orchestrator) fail(t *turn, resp Response, err error) Response {
	stage := t.stage
	o.step(t, StepFailed)

	msg := err.Error()
	if errors.Is(err, llm.ErrRateLimited) {
		msg = transientFailureMessage
	}
	o.recorder.LogEvent(sourceHandleQuery, observability.EventError, map[string]interface{}{
		"customer_id": resp.CustomerID,
		"session_id":  resp.SessionID,
		"trace_id":    t.traceID,
		"stage":       stage,
		"error":       err.Error(),
	})
	o.logger.Error("Query failed",
		zap.String("trace_id", t.traceID),
		zap.String("customer_id", resp.CustomerID),
		zap.String("stage", stage),
		zap.Error(err))

	resp.Status = StatusError
	resp.Error = msg
	resp.Response = ""
	return resp
}

func historyLines(msgs []session.Message) []string {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role+": "+m.Content)
	}
	return out
}
