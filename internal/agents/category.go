package agents

import (
	"fmt"
	"strings"
	"unicode"
)

// Category is the closed set of query classes
type Category string

const (
	CategoryBilling          Category = "BILLING"
	CategoryPlanChange       Category = "PLAN_CHANGE"
	CategoryTechnical        Category = "TECHNICAL"
	CategoryServiceComplaint Category = "SERVICE_COMPLAINT"
	CategoryGeneralInfo      Category = "GENERAL_INFO"
)

// Categories lists every category in declaration order
var Categories = []Category{
	CategoryBilling,
	CategoryPlanChange,
	CategoryTechnical,
	CategoryServiceComplaint,
	CategoryGeneralInfo,
}

// Valid reports whether c is one of the five categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ClassificationError is returned when generator output does not name a
// category or the generator itself failed
type ClassificationError struct {
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %v", e.Err)
	}
	return fmt.Sprintf("unrecognised classification %q", e.Raw)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ParseCategory reads the first token of generator output, e.g.
// "billing - the customer asks about charges" yields BILLING. Numbering
// and punctuation around the label are ignored.
func ParseCategory(raw string) (Category, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return !(unicode.IsLetter(r) || r == '_')
	})
	if len(fields) == 0 {
		return "", &ClassificationError{Raw: raw}
	}
	c := Category(strings.ToUpper(fields[0]))
	if !c.Valid() {
		return "", &ClassificationError{Raw: raw}
	}
	return c, nil
}
