package workflows

import (
	"time"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
)

// Status of an orchestrated turn
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Workflow names the strategy used to gather context for a turn
type Workflow string

const (
	WorkflowParallel   Workflow = "parallel_gather"
	WorkflowSequential Workflow = "sequential_pipeline"
	WorkflowIterative  Workflow = "iterative_resolution"
)

// Trace step names, recorded in causal order
const (
	StepReceived   = "RECEIVED"
	StepClassified = "CLASSIFIED"
	StepParallel   = "PARALLEL_GATHER"
	StepSequential = "SEQUENTIAL_PIPELINE"
	StepIterative  = "ITERATIVE_RESOLUTION"
	StepMerged     = "MERGED"
	StepPersisted  = "PERSISTED"
	StepResponded  = "RESPONDED"
	StepFailed     = "FAILED"
)

// WorkflowFor returns the strategy used for a category
func WorkflowFor(c agents.Category) Workflow {
	switch c {
	case agents.CategoryPlanChange:
		return WorkflowSequential
	case agents.CategoryTechnical:
		return WorkflowIterative
	default:
		return WorkflowParallel
	}
}

func (w Workflow) step() string {
	switch w {
	case WorkflowSequential:
		return StepSequential
	case WorkflowIterative:
		return StepIterative
	default:
		return StepParallel
	}
}

// Response is the result of HandleQuery
type Response struct {
	Status     Status          `json:"status"`
	CustomerID string          `json:"customer_id"`
	SessionID  string          `json:"session_id"`
	Response   string          `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	Category   agents.Category `json:"category,omitempty"`
	Workflow   Workflow        `json:"workflow,omitempty"`
	TraceID    string          `json:"trace_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Tunables are the workflow parameters that may change on config reload
type Tunables struct {
	MaxIterations       int     `mapstructure:"max_iterations"`
	ResolutionThreshold int     `mapstructure:"resolution_threshold"`
	BudgetCeiling       float64 `mapstructure:"budget_ceiling"`
	BillMonths          int     `mapstructure:"bill_months"`
	HistoryTurns        int     `mapstructure:"history_turns"`
}

// DefaultTunables returns the stock workflow parameters
func DefaultTunables() Tunables {
	return Tunables{
		MaxIterations:       DefaultMaxIterations,
		ResolutionThreshold: DefaultResolutionThreshold,
		BudgetCeiling:       backend.DefaultBudget,
		BillMonths:          backend.DefaultBillMonths,
		HistoryTurns:        6,
	}
}

func (t Tunables) withDefaults() Tunables {
	d := DefaultTunables()
	if t.MaxIterations <= 0 {
		t.MaxIterations = d.MaxIterations
	}
	if t.ResolutionThreshold <= 0 {
		t.ResolutionThreshold = d.ResolutionThreshold
	}
	if t.BudgetCeiling <= 0 {
		t.BudgetCeiling = d.BudgetCeiling
	}
	if t.BillMonths <= 0 {
		t.BillMonths = d.BillMonths
	}
	if t.HistoryTurns < 0 {
		t.HistoryTurns = 0
	}
	return t
}
