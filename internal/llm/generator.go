// Package llm holds the text-generation capability used by the classifier
// and specialist handlers, plus the middleware that makes provider calls
// resilient.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Generator produces text for an instruction/prompt pair
type Generator interface {
	Generate(ctx context.Context, instruction, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, instruction, prompt string) (string, error)

// Generate implements Generator
func (f GeneratorFunc) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	return f(ctx, instruction, prompt)
}

// Middleware decorates a Generator
type Middleware func(Generator) Generator

// Chain applies middleware so that the first one listed is the outermost
func Chain(g Generator, mws ...Middleware) Generator {
	for i := len(mws) - 1; i >= 0; i-- {
		g = mws[i](g)
	}
	return g
}

// ErrorKind separates throttling from other provider failures
type ErrorKind string

const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindServiceError ErrorKind = "service_error"
)

// Error is a provider failure with its HTTP status when known
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Provider == "" && t.StatusCode == 0 && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrServiceError = &Error{Kind: KindServiceError}
)

// RetryableStatusCodes are the provider statuses worth retrying
var RetryableStatusCodes = map[int]bool{429: true, 500: true, 503: true, 504: true}

// NewStatusError builds an Error from an HTTP status
func NewStatusError(provider string, status int, err error) *Error {
	kind := KindServiceError
	if status == 429 {
		kind = KindRateLimited
	}
	return &Error{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

// IsRetryable reports whether err is a provider error with a retryable status
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return RetryableStatusCodes[e.StatusCode]
}

var statusPattern = regexp.MustCompile(`\b(4\d\d|5\d\d)\b`)

// statusFromMessage extracts an HTTP status from an error string when the
// SDK does not expose a typed error.
func statusFromMessage(msg string) int {
	m := statusPattern.FindString(msg)
	if m == "" {
		return 0
	}
	code, _ := strconv.Atoi(m)
	return code
}
