// Package logerr provides the typed errors returned by the ingestion,
// storage and filtering layers.
package logerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error
type Kind string

const (
	KindParse         Kind = "parse_failure"
	KindSourceLoad    Kind = "source_load_failure"
	KindCapacity      Kind = "capacity_exceeded"
	KindInvalidFilter Kind = "invalid_filter_expression"
	KindCancelled     Kind = "cancellation_requested"
	KindNotFound      Kind = "not_found"
)

var (
	ErrSourceLimit   = errors.New("maximum number of sources reached")
	ErrLineLimit     = errors.New("line limit exceeded")
	ErrUnknownSource = errors.New("unknown source")
)

// Error carries enough context (operation and source) for a UI layer to
// render a message.
type Error struct {
	Kind   Kind
	Op     string
	Source string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Source != "" {
		msg += fmt.Sprintf(" %q", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error
func New(kind Kind, op, source string, err error) *Error {
	return &Error{Kind: kind, Op: op, Source: source, Err: err}
}

// KindOf returns the Kind of the first Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain holds an Error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
