package evaluation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
)

type caseFile struct {
	Cases []TestCase `yaml:"cases"`
}

// DefaultCases are the stock evaluation and demo queries
func DefaultCases() []TestCase {
	return []TestCase{
		{ID: "TEST001", CustomerID: "TEST001", Query: "Check my account balance", ExpectedOutcome: "balance_shown", ExpectedCategory: agents.CategoryBilling},
		{ID: "TEST002", CustomerID: "TEST002", Query: "Upgrade my plan", ExpectedOutcome: "plan_change_initiated", ExpectedCategory: agents.CategoryPlanChange},
		{ID: "DEMO001", CustomerID: "CUST001", Query: "My bill for this month seems very high. Can you explain the charges?", ExpectedOutcome: "charges_explained", ExpectedCategory: agents.CategoryBilling},
		{ID: "DEMO002", CustomerID: "CUST002", Query: "I want to upgrade my plan. What options are available in my region?", ExpectedOutcome: "plan_change_initiated", ExpectedCategory: agents.CategoryPlanChange},
		{ID: "DEMO003", CustomerID: "CUST001", Query: "I'm having trouble with my data connection. Can you help?", ExpectedOutcome: "troubleshooting_steps", ExpectedCategory: agents.CategoryTechnical},
	}
}

// LoadCases parses a YAML document with a top-level "cases" list
func LoadCases(r io.Reader) ([]TestCase, error) {
	var f caseFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation cases: %w", err)
	}
	for i, tc := range f.Cases {
		if strings.TrimSpace(tc.CustomerID) == "" || strings.TrimSpace(tc.Query) == "" {
			return nil, fmt.Errorf("case %d: customer_id and query are required", i)
		}
		if tc.ExpectedCategory != "" {
			c, err := agents.ParseCategory(string(tc.ExpectedCategory))
			if err != nil {
				return nil, fmt.Errorf("case %d: %w", i, err)
			}
			f.Cases[i].ExpectedCategory = c
		}
		if tc.ID == "" {
			f.Cases[i].ID = fmt.Sprintf("CASE%03d", i+1)
		}
	}
	return f.Cases, nil
}

// LoadCaseFile reads cases from path
func LoadCaseFile(path string) ([]TestCase, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case file: %w", err)
	}
	defer fh.Close()
	return LoadCases(fh)
}
