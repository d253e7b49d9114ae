// Package kgerrors defines the categorized error kinds shared across the
// graph store, index manager, query processor, advanced query engine, and
// semantic cache.
package kgerrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable, programmatically matchable error category.
type Kind string

const (
	NotFound           Kind = "not_found"
	AlreadyExists      Kind = "already_exists"
	InvalidQuery       Kind = "invalid_query"
	InvalidArgument    Kind = "invalid_argument"
	IntegrityViolation Kind = "integrity_violation"
	DimensionMismatch  Kind = "dimension_mismatch"
	ResultTooLarge     Kind = "result_too_large"
	Timeout            Kind = "timeout"
	Cancelled          Kind = "cancelled"
	Concurrent         Kind = "concurrent"
	NotInitialized     Kind = "not_initialized"
	Backend            Kind = "backend"
	Unsupported        Kind = "unsupported"
)

// Error is the categorized error every public operation returns on failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is matches any *Error target by Kind alone, so
// errors.Is(err, kgerrors.Sentinel(kgerrors.NotFound)) holds whatever Op or
// Err the error carries.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds a categorized error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a categorized error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithOp attaches the operation name to err if it is a *Error that has none
// yet (an existing Op is kept), otherwise wraps it as a Backend error
// carrying op.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return &Error{Kind: Backend, Op: op, Err: err}
}

// Sentinel returns a comparable *Error with only Kind set, for use with
// errors.Is(err, kgerrors.Sentinel(kgerrors.NotFound)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// FromContext categorizes a context error as Timeout or Cancelled; any other
// error passes through WithOp unchanged.
func FromContext(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: Timeout, Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: Cancelled, Op: op, Err: err}
	default:
		return WithOp(op, err)
	}
}
