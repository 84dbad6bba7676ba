package agents

import (
	"context"
	"fmt"
	"strings"
)

// keywordRules are checked in order; the first category with a matching
// keyword wins.
var keywordRules = []struct {
	category Category
	words    []string
}{
	{CategoryServiceComplaint, []string{"complain", "complaint", "terrible", "worst", "poor service", "unacceptable", "frustrated"}},
	{CategoryTechnical, []string{"signal", "network", "connect", "internet", "data not", "no data", "call drop", "outage", "trouble", "slow"}},
	{CategoryPlanChange, []string{"upgrade", "downgrade", "change my plan", "change plan", "switch plan", "new plan", "plan change"}},
	{CategoryBilling, []string{"bill", "charge", "invoice", "payment", "balance", "refund", "pay "}},
}

// KeywordGenerator answers the classification instruction with a category
// label chosen by keyword matching. It is used when no model provider is
// configured.
type KeywordGenerator struct{}

// Generate implements llm.Generator
func (KeywordGenerator) Generate(ctx context.Context, _ string, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := strings.ToLower(query)
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(q, w) {
				return fmt.Sprintf("%s - matched %q", rule.category, w), nil
			}
		}
	}
	return fmt.Sprintf("%s - no specific topic detected", CategoryGeneralInfo), nil
}
