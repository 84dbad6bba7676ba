package workflows

import (
	"context"
)

const (
	DefaultMaxIterations       = 3
	DefaultResolutionThreshold = 2
)

// CanonicalSteps are the troubleshooting steps exposed progressively
var CanonicalSteps = []string{
	"Check network signal",
	"Verify plan active status",
	"Check device settings",
}

// Outcome of an iterative resolution
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeEscalate Outcome = "escalate"
)

// Attempt is one iteration of troubleshooting
type Attempt struct {
	Iteration int      `json:"iteration"`
	Steps     []string `json:"steps"`
}

// ResolutionResult is returned in both outcomes with the full history
type ResolutionResult struct {
	Status     Outcome   `json:"status"`
	Iterations int       `json:"iterations"`
	Attempts   []Attempt `json:"solutions_tried"`
}

// ResolutionPolicy decides whether an attempt resolved the issue
type ResolutionPolicy interface {
	Resolved(ctx context.Context, attempt Attempt) bool
}

// ResolutionPolicyFunc adapts a function to ResolutionPolicy
type ResolutionPolicyFunc func(ctx context.Context, attempt Attempt) bool

// Resolved implements ResolutionPolicy
func (f ResolutionPolicyFunc) Resolved(ctx context.Context, attempt Attempt) bool {
	return f(ctx, attempt)
}

// ThresholdPolicy treats the issue as resolved once Threshold iterations ran
type ThresholdPolicy struct {
	Threshold int
}

// Resolved implements ResolutionPolicy
func (p ThresholdPolicy) Resolved(_ context.Context, attempt Attempt) bool {
	return attempt.Iteration >= p.Threshold
}

// IterativeResolution runs up to maxIterations attempts, exposing the first
// i canonical steps on iteration i, and stops at the first attempt the
// policy accepts.
func IterativeResolution(ctx context.Context, maxIterations int, policy ResolutionPolicy, onAttempt func(Attempt)) (ResolutionResult, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if policy == nil {
		policy = ThresholdPolicy{Threshold: DefaultResolutionThreshold}
	}

	res := ResolutionResult{Status: OutcomeEscalate}
	for i := 1; i <= maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := i
		if n > len(CanonicalSteps) {
			n = len(CanonicalSteps)
		}
		attempt := Attempt{Iteration: i, Steps: append([]string(nil), CanonicalSteps[:n]...)}
		res.Attempts = append(res.Attempts, attempt)
		res.Iterations = i
		if onAttempt != nil {
			onAttempt(attempt)
		}
		if policy.Resolved(ctx, attempt) {
			res.Status = OutcomeResolved
			return res, nil
		}
	}
	return res, nil
}
