package workflows

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/session"
)

type fixture struct {
	orch     *Orchestrator
	mock     *backend.MockClient
	recorder *observability.Recorder
	sessions *session.MemoryStore
}

func newFixture(t *testing.T, gen llm.Generator, opts ...Option) *fixture {
	t.Helper()
	store := session.NewMemoryStore()
	return newFixtureWithStore(t, gen, store, store, opts...)
}

// newFixtureWithStore lets tests put a wrapper in front of the memory
// store while still inspecting what was persisted underneath.
func newFixtureWithStore(t *testing.T, gen llm.Generator, sessions session.Store, store *session.MemoryStore, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mock := backend.NewMockClient(backend.DefaultDataset())
	rec := observability.NewRecorder(logger)

	policy, err := agents.NewCompliancePolicy(context.Background())
	require.NoError(t, err)

	deps := agents.Deps{Client: mock, Generator: gen, Events: rec, Logger: logger}
	orch, err := New(Deps{
		Classifier: agents.NewClassifier(agents.KeywordGenerator{}),
		Handlers:   DefaultHandlers(deps, policy, nil),
		Client:     mock,
		Sessions:   sessions,
		Recorder:   rec,
		Logger:     logger,
	}, opts...)
	require.NoError(t, err)
	return &fixture{orch: orch, mock: mock, recorder: rec, sessions: store}
}

func traceSteps(t *testing.T, rec *observability.Recorder, traceID string) []string {
	t.Helper()
	tr, ok := rec.Trace(traceID)
	require.True(t, ok)
	steps := make([]string, 0, len(tr.Steps))
	for _, s := range tr.Steps {
		steps = append(steps, s.Step)
	}
	return steps
}

func eventTypes(rec *observability.Recorder) []observability.EventType {
	var out []observability.EventType
	for _, ev := range rec.Report(1000).Logs {
		out = append(out, ev.Type)
	}
	return out
}

func TestHandleQuery_BillingEndToEnd(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-billing")

	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, agents.CategoryBilling, resp.Category)
	assert.Equal(t, WorkflowParallel, resp.Workflow)
	assert.Greater(t, len(resp.Response), 10)
	assert.Contains(t, resp.Response, "Rajesh Kumar")
	assert.GreaterOrEqual(t, f.mock.Calls(backend.CapProfile), 1)
	assert.GreaterOrEqual(t, f.mock.Calls(backend.CapBilling), 1)
	assert.Equal(t, "s-billing", resp.SessionID)
	assert.NotEmpty(t, resp.TraceID)

	assert.Equal(t, []string{StepReceived, StepClassified, StepParallel, StepMerged, StepPersisted, StepResponded},
		traceSteps(t, f.recorder, resp.TraceID))

	types := eventTypes(f.recorder)
	assert.Equal(t, observability.EventStart, types[0])
	assert.Equal(t, observability.EventSuccess, types[len(types)-1])
}

func TestHandleQuery_DefaultSessionID(t *testing.T) {
	now := time.Date(2024, 11, 20, 14, 5, 9, 0, time.UTC)
	f := newFixture(t, llm.TemplateGenerator{}, WithClock(func() time.Time { return now }))

	resp := f.orch.HandleQuery(context.Background(), "CUST002", "Check my account balance", "")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, "session_CUST002_20241120140509", resp.SessionID)
}

func TestHandleQuery_PlanChangeSubmitsTicket(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Upgrade my plan", "s-plan")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, agents.CategoryPlanChange, resp.Category)
	assert.Equal(t, WorkflowSequential, resp.Workflow)
	assert.Equal(t, 1, f.mock.Calls(backend.CapPlanChange))
	assert.Contains(t, resp.Response, "TKT-CUST001-")

	sess, err := f.sessions.GetOrCreate(context.Background(), DefaultAppID, "CUST001", "s-plan")
	require.NoError(t, err)
	ticket, ok := sess.GetScratch("last_ticket_id")
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(ticket.(string), "TKT-CUST001-"))
}

func TestHandleQuery_PlanChangeUnknownCustomerIsNotFatal(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})

	resp := f.orch.HandleQuery(context.Background(), "CUST999", "Upgrade my plan", "s-missing")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Contains(t, resp.Response, "could not find")
	assert.Equal(t, 0, f.mock.Calls(backend.CapCatalog))
	assert.Equal(t, 0, f.mock.Calls(backend.CapPlanChange))
	assert.Contains(t, eventTypes(f.recorder), observability.EventPartialResult)
}

func TestHandleQuery_TechnicalResolves(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})

	resp := f.orch.HandleQuery(context.Background(), "CUST002", "My internet is very slow", "s-tech")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, WorkflowIterative, resp.Workflow)
	assert.Contains(t, resp.Response, `"status":"resolved"`)
	assert.NotContains(t, eventTypes(f.recorder), observability.EventEscalated)
	assert.Contains(t, traceSteps(t, f.recorder, resp.TraceID), StepIterative)
}

func TestHandleQuery_TechnicalEscalates(t *testing.T) {
	never := ResolutionPolicyFunc(func(context.Context, Attempt) bool { return false })
	f := newFixture(t, llm.TemplateGenerator{}, WithResolutionPolicy(never))

	resp := f.orch.HandleQuery(context.Background(), "CUST002", "No signal since morning", "s-esc")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Contains(t, resp.Response, `"status":"escalate"`)
	assert.Contains(t, eventTypes(f.recorder), observability.EventEscalated)
}

func TestHandleQuery_TunablesReload(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	f.orch.SetTunables(Tunables{MaxIterations: 1, ResolutionThreshold: 2})

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Network keeps dropping", "s-reload")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Contains(t, resp.Response, `"status":"escalate"`)

	tun := f.orch.Tunables()
	assert.Equal(t, 1, tun.MaxIterations)
	assert.Equal(t, backend.DefaultBudget, tun.BudgetCeiling)
}

func TestHandleQuery_ClassificationDegrades(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	f.orch.classifier = agents.NewClassifier(llm.GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "", llm.NewStatusError("test", 503, errors.New("down"))
	}))

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-degraded")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, agents.CategoryGeneralInfo, resp.Category)
	assert.Contains(t, eventTypes(f.recorder), observability.EventClassificationDegraded)
}

func TestHandleQuery_RateLimitedIsTransientAndLeavesSession(t *testing.T) {
	limited := llm.GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "", llm.NewStatusError("test", 429, errors.New("quota"))
	})
	f := newFixture(t, limited)

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-limited")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "transient failure")
	assert.Empty(t, resp.Response)

	steps := traceSteps(t, f.recorder, resp.TraceID)
	assert.Equal(t, StepFailed, steps[len(steps)-1])
	assert.NotContains(t, steps, StepPersisted)

	sess, err := f.sessions.GetOrCreate(context.Background(), DefaultAppID, "CUST001", "s-limited")
	require.NoError(t, err)
	assert.Empty(t, sess.History)
	assert.Equal(t, 0, sess.Turns)
}

// faultyStore fails GetOrCreate or Save on demand
type faultyStore struct {
	*session.MemoryStore
	mu      sync.Mutex
	getErr  error
	saveErr error
}

func (s *faultyStore) fail(getErr, saveErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr, s.saveErr = getErr, saveErr
}

func (s *faultyStore) GetOrCreate(ctx context.Context, appID, userID, sessionID string) (*session.Session, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.GetOrCreate(ctx, appID, userID, sessionID)
}

func (s *faultyStore) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Save(ctx, sess)
}

func TestHandleQuery_SaveFailureLeavesSessionUntouched(t *testing.T) {
	mem := session.NewMemoryStore()
	store := &faultyStore{MemoryStore: mem}
	f := newFixtureWithStore(t, llm.TemplateGenerator{}, store, mem)
	ctx := context.Background()

	first := f.orch.HandleQuery(ctx, "CUST001", "Check my account balance", "s-save")
	require.Equal(t, StatusSuccess, first.Status, first.Error)

	store.fail(nil, &session.Error{Op: "save", Err: errors.New("disk full")})
	resp := f.orch.HandleQuery(ctx, "CUST001", "Upgrade my plan", "s-save")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "disk full")
	assert.Empty(t, resp.Response)
	assert.Contains(t, eventTypes(f.recorder), observability.EventError)
	steps := traceSteps(t, f.recorder, resp.TraceID)
	assert.Equal(t, StepFailed, steps[len(steps)-1])
	assert.NotContains(t, steps, StepPersisted)

	store.fail(errors.New("store offline"), nil)
	billingCalls := f.mock.Calls(backend.CapBilling)
	resp = f.orch.HandleQuery(ctx, "CUST001", "Check my account balance", "s-save")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "store offline")
	assert.Equal(t, billingCalls, f.mock.Calls(backend.CapBilling), "no strategy runs without a session")

	sess, err := mem.GetOrCreate(ctx, DefaultAppID, "CUST001", "s-save")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Turns)
	require.Len(t, sess.History, 2)
	assert.Equal(t, "Check my account balance", sess.History[0].Content)
	last, _ := sess.GetScratch("last_category")
	assert.Equal(t, string(agents.CategoryBilling), last)
	assert.Equal(t, 0, f.orch.locks.Held())
}

func TestHandleQuery_CancelledGatherReleasesLock(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	f.mock.SetLatency(backend.CapBilling, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	resp := f.orch.HandleQuery(ctx, "CUST001", "Check my account balance", "s-cancel")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, context.DeadlineExceeded.Error())
	assert.Equal(t, 0, f.orch.locks.Held())

	sess, err := f.sessions.GetOrCreate(context.Background(), DefaultAppID, "CUST001", "s-cancel")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Turns)

	f.mock.SetLatency(backend.CapBilling, 0)
	next := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-cancel")
	require.Equal(t, StatusSuccess, next.Status, next.Error)
	assert.Equal(t, 0, f.orch.locks.Held())
}

func TestHandleQuery_GatherFailureIsNotRefetched(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	f.mock.SetFault(backend.CapBilling, &backend.Error{Kind: backend.KindUnavailable, Op: backend.CapBilling, Msg: "billing down"})

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-refetch")
	require.Equal(t, StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, WorkflowParallel, resp.Workflow)
	assert.Equal(t, 1, f.mock.Calls(backend.CapBilling))
	assert.Equal(t, 1, f.mock.Calls(backend.CapProfile))

	types := eventTypes(f.recorder)
	assert.Contains(t, types, observability.EventPartialResult)
	assert.Contains(t, types, observability.EventDegradedContext)
}

type panicHandler struct{}

func (panicHandler) Name() string { return "panicky" }
func (panicHandler) Handle(context.Context, string, string, agents.HandlerContext) (string, error) {
	panic("boom")
}

func TestHandleQuery_PanicBecomesErrorResponse(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	f.orch.handlers[agents.CategoryBilling] = panicHandler{}

	resp := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "s-panic")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "boom")
	assert.Contains(t, eventTypes(f.recorder), observability.EventError)

	// The session lock was released by the deferred unlock
	again := f.orch.HandleQuery(context.Background(), "CUST001", "Upgrade my plan", "s-panic")
	assert.Equal(t, StatusSuccess, again.Status, again.Error)
}

func TestHandleQuery_ValidatesInput(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	resp := f.orch.HandleQuery(context.Background(), "", "hello", "s")
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestHandleQuery_HistoryAccumulates(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	ctx := context.Background()

	first := f.orch.HandleQuery(ctx, "CUST001", "Check my account balance", "s-hist")
	require.Equal(t, StatusSuccess, first.Status, first.Error)
	second := f.orch.HandleQuery(ctx, "CUST001", "Upgrade my plan", "s-hist")
	require.Equal(t, StatusSuccess, second.Status, second.Error)
	assert.Contains(t, second.Response, "user: Check my account balance")

	sess, err := f.sessions.GetOrCreate(ctx, DefaultAppID, "CUST001", "s-hist")
	require.NoError(t, err)
	require.Len(t, sess.History, 4)
	assert.Equal(t, "user", sess.History[0].Role)
	assert.Equal(t, "assistant", sess.History[1].Role)
	assert.Equal(t, 2, sess.Turns)
}

func TestHandleQuery_ConcurrentTurnsOnOneSessionAreSerialized(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	ctx := context.Background()

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := f.orch.HandleQuery(ctx, "CUST002", fmt.Sprintf("Check my bill %d", i), "s-shared")
			assert.Equal(t, StatusSuccess, resp.Status, resp.Error)
		}(i)
	}
	wg.Wait()

	sess, err := f.sessions.GetOrCreate(ctx, DefaultAppID, "CUST002", "s-shared")
	require.NoError(t, err)
	assert.Len(t, sess.History, 2*turns)
	assert.Equal(t, turns, sess.Turns)
	for i := 0; i < len(sess.History); i += 2 {
		assert.Equal(t, "user", sess.History[i].Role)
		assert.Equal(t, "assistant", sess.History[i+1].Role)
	}
}

func TestHandleQuery_TraceIDsAreUnique(t *testing.T) {
	f := newFixture(t, llm.TemplateGenerator{})
	uuidRe := regexp.MustCompile(`^[0-9a-f-]{36}$`)

	a := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "")
	b := f.orch.HandleQuery(context.Background(), "CUST001", "Check my account balance", "")
	assert.NotEqual(t, a.TraceID, b.TraceID)
	assert.Regexp(t, uuidRe, a.TraceID)
}

func TestNew_RequiresEveryHandler(t *testing.T) {
	mock := backend.NewMockClient(backend.DefaultDataset())
	_, err := New(Deps{
		Classifier: agents.NewClassifier(agents.KeywordGenerator{}),
		Handlers:   map[agents.Category]agents.Handler{},
		Client:     mock,
		Sessions:   session.NewMemoryStore(),
		Recorder:   observability.NewRecorder(nil),
	})
	assert.Error(t, err)
}
