package workflows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
)

// Pipeline steps in execution order
const (
	PipelineFetchProfile = "fetch_profile"
	PipelineFetchCatalog = "fetch_catalog"
	PipelineSubmitChange = "submit_change"
)

// ErrNoEligiblePlan is returned when the catalog has nothing within budget
var ErrNoEligiblePlan = errors.New("no plan available within budget")

// PipelineError reports where the pipeline stopped. Completed is the last
// step that succeeded, empty when the first step failed.
type PipelineError struct {
	Step      string
	Completed string
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("plan change pipeline failed at %s: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// PipelineResult is the output of a sequential plan change
type PipelineResult struct {
	Completed  []string                `json:"completed"`
	Profile    backend.CustomerProfile `json:"-"`
	Catalog    []backend.PlanOffering  `json:"-"`
	TargetPlan string                  `json:"target_plan,omitempty"`
	Ticket     *backend.ChangeTicket   `json:"-"`
}

// PipelineSummary is what the plan advisor sees about the pipeline run
type PipelineSummary struct {
	Status        Status `json:"status"`
	CurrentPlan   string `json:"current_plan,omitempty"`
	TargetPlan    string `json:"target_plan,omitempty"`
	CompletedStep string `json:"completed_step,omitempty"`
	FailedStep    string `json:"failed_step,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SequentialPipeline fetches the profile, then the regional catalog under
// budget, then submits a change to the chosen plan effective today. A
// failing step stops the pipeline; the partial result is returned with a
// *PipelineError.
func SequentialPipeline(ctx context.Context, client backend.Client, customerID, query string, budget float64, now time.Time) (PipelineResult, error) {
	var res PipelineResult
	fail := func(step string, err error) (PipelineResult, error) {
		completed := ""
		if n := len(res.Completed); n > 0 {
			completed = res.Completed[n-1]
		}
		return res, &PipelineError{Step: step, Completed: completed, Err: err}
	}

	profile, err := client.FetchProfile(ctx, customerID)
	if err != nil {
		return fail(PipelineFetchProfile, err)
	}
	res.Profile = profile
	res.Completed = append(res.Completed, PipelineFetchProfile)

	catalog, err := client.FetchPlanCatalog(ctx, profile.Region, budget)
	if err != nil {
		return fail(PipelineFetchCatalog, err)
	}
	res.Catalog = catalog
	res.Completed = append(res.Completed, PipelineFetchCatalog)

	target, ok := choosePlan(catalog, query, profile.Plan)
	if !ok {
		return fail(PipelineSubmitChange, ErrNoEligiblePlan)
	}
	res.TargetPlan = target

	ticket, err := client.SubmitPlanChange(ctx, customerID, target, now)
	if err != nil {
		return fail(PipelineSubmitChange, err)
	}
	res.Ticket = &ticket
	res.Completed = append(res.Completed, PipelineSubmitChange)
	return res, nil
}

// choosePlan picks the offering named in the query, or else the most
// expensive offering that is not the current plan.
func choosePlan(catalog []backend.PlanOffering, query, current string) (string, bool) {
	q := strings.ToLower(query)
	byName := make([]backend.PlanOffering, len(catalog))
	copy(byName, catalog)
	// Longest names first so "Premium-399" wins over a shorter prefix.
	sort.SliceStable(byName, func(i, j int) bool { return len(byName[i].Name) > len(byName[j].Name) })
	for _, p := range byName {
		if p.Name != "" && strings.Contains(q, strings.ToLower(p.Name)) {
			return p.Name, true
		}
	}

	best := -1
	for i, p := range catalog {
		if strings.EqualFold(p.Name, current) {
			continue
		}
		if best < 0 || p.Price > catalog[best].Price {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return catalog[best].Name, true
}

func (r PipelineResult) summary(err error) PipelineSummary {
	s := PipelineSummary{
		Status:      StatusSuccess,
		CurrentPlan: r.Profile.Plan,
		TargetPlan:  r.TargetPlan,
	}
	if n := len(r.Completed); n > 0 {
		s.CompletedStep = r.Completed[n-1]
	}
	var perr *PipelineError
	if errors.As(err, &perr) {
		s.Status = StatusError
		s.FailedStep = perr.Step
		s.Message = pipelineMessage(perr)
	}
	return s
}

func pipelineMessage(perr *PipelineError) string {
	switch {
	case errors.Is(perr.Err, backend.ErrNotFound):
		return "We're sorry, we could not find this customer account, so the plan change was not started."
	case errors.Is(perr.Err, ErrNoEligiblePlan):
		return "No plan in the customer's region fits the budget, so no change was submitted."
	case errors.Is(perr.Err, backend.ErrSubmissionFailed):
		return "The plan change request could not be submitted: " + perr.Err.Error()
	default:
		return "The plan change could not be completed right now; no change was submitted."
	}
}
