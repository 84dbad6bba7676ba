package backend

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure category of a backend call
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindUnavailable      ErrorKind = "unavailable"
	KindSubmissionFailed ErrorKind = "submission_failed"
)

// Error is returned by every capability client
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	prefix := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Op == "" {
		prefix = fmt.Sprintf("backend %s", e.Kind)
	}
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of operation or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
	ErrSubmissionFailed = &Error{Kind: KindSubmissionFailed}
)

// KindOf returns the kind of a backend error, or "" for other errors
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func notFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func submissionFailed(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindSubmissionFailed, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// unavailable wraps transport-level failures
func unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}
