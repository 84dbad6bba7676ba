package agents

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed compliance.rego
var defaultCompliancePolicy string

const complianceQuery = "data.telecom.compliance.violations"

// ComplianceInput is the document the compliance rules are evaluated against
type ComplianceInput struct {
	Query   string      `json:"query"`
	Profile interface{} `json:"profile,omitempty"`
	Billing interface{} `json:"billing,omitempty"`
}

// CompliancePolicy evaluates TRAI / DPDP / consumer-protection / KYC rules
type CompliancePolicy struct {
	compiled rego.PreparedEvalQuery
}

// NewCompliancePolicy compiles the built-in rules
func NewCompliancePolicy(ctx context.Context) (*CompliancePolicy, error) {
	return compilePolicy(ctx, "compliance.rego", defaultCompliancePolicy)
}

// LoadCompliancePolicy compiles rules from a .rego file. The file must
// declare package telecom.compliance and a violations set.
func LoadCompliancePolicy(ctx context.Context, path string) (*CompliancePolicy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compliance policy: %w", err)
	}
	return compilePolicy(ctx, path, string(src))
}

func compilePolicy(ctx context.Context, name, src string) (*CompliancePolicy, error) {
	compiled, err := rego.New(
		rego.Query(complianceQuery),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile compliance policy: %w", err)
	}
	return &CompliancePolicy{compiled: compiled}, nil
}

// Evaluate returns the sorted list of violated rules; empty means compliant
func (p *CompliancePolicy) Evaluate(ctx context.Context, in ComplianceInput) ([]string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal compliance input: %w", err)
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("convert compliance input: %w", err)
	}

	results, err := p.compiled.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("compliance policy evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	set, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected compliance result type %T", results[0].Expressions[0].Value)
	}
	violations := make([]string, 0, len(set))
	for _, v := range set {
		if s, ok := v.(string); ok {
			violations = append(violations, s)
		}
	}
	sort.Strings(violations)
	return violations, nil
}
