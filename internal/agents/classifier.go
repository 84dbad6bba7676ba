package agents

import (
	"context"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/llm"
)

// Classifier maps a free-text query to a Category
type Classifier struct {
	gen llm.Generator
}

// NewClassifier creates a classifier backed by gen
func NewClassifier(gen llm.Generator) *Classifier {
	return &Classifier{gen: gen}
}

// Classify returns the query category. On generator failure or an
// unrecognised label it returns GENERAL_INFO together with a
// *ClassificationError so the caller can record the degradation.
func (c *Classifier) Classify(ctx context.Context, query string) (Category, error) {
	raw, err := c.gen.Generate(ctx, classifierInstruction, query)
	if err != nil {
		return CategoryGeneralInfo, &ClassificationError{Err: err}
	}
	category, err := ParseCategory(raw)
	if err != nil {
		return CategoryGeneralInfo, err
	}
	return category, nil
}
