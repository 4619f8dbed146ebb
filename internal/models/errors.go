package models

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failures the core can report
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidStatus     ErrorKind = "invalid_status"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInvalidCriteria   ErrorKind = "invalid_criteria"
	KindQueryExecution    ErrorKind = "query_execution"
	KindConflict          ErrorKind = "conflict"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// Error is the typed error returned by stores and services.
// Field and Value identify the offending input when there is one.
type Error struct {
	Kind    ErrorKind
	Field   string
	Value   any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrNotFound is returned when the referenced todo does not exist
	ErrNotFound = &Error{Kind: KindNotFound, Message: "todo not found"}
	// ErrInvalidStatus is returned for a status outside the five workflow states
	ErrInvalidStatus = &Error{Kind: KindInvalidStatus, Message: "invalid status"}
	// ErrInvalidTransition is returned when the target status is not reachable
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	// ErrInvalidCriteria is returned when search criteria fail validation
	ErrInvalidCriteria = &Error{Kind: KindInvalidCriteria, Message: "invalid search criteria"}
	// ErrQueryExecution is returned when the backing store fails
	ErrQueryExecution = &Error{Kind: KindQueryExecution, Message: "query execution failed"}
	// ErrConflict is returned when a concurrent write won every retry
	ErrConflict = &Error{Kind: KindConflict, Message: "concurrent modification"}
	// ErrInvalidInput is returned when todo fields fail validation
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Message: "invalid input"}
)

// KindOf returns the kind of a typed error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewNotFoundError reports a missing todo
func NewNotFoundError(id any) error {
	return &Error{Kind: KindNotFound, Field: "id", Value: id, Message: fmt.Sprintf("todo %v not found", id)}
}

// NewInvalidStatusError reports a status outside the enum
func NewInvalidStatusError(value string) error {
	return &Error{
		Kind:    KindInvalidStatus,
		Field:   "status",
		Value:   value,
		Message: fmt.Sprintf("invalid status %q (must be one of todo, in_progress, review, done, archived)", value),
	}
}

// NewInvalidTransitionError reports a move that is not in the transition table
func NewInvalidTransitionError(from, to Status) error {
	return &Error{
		Kind:    KindInvalidTransition,
		Field:   "status",
		Value:   to,
		Message: fmt.Sprintf("invalid status transition from %s to %s (allowed: %v)", from, to, ValidTransitionsFrom(from)),
	}
}

// NewInvalidCriteriaError reports a search criteria field that failed validation
func NewInvalidCriteriaError(field string, value any, reason string) error {
	return &Error{
		Kind:    KindInvalidCriteria,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
	}
}

// NewInvalidInputError reports a todo field that failed validation
func NewInvalidInputError(field, reason string) error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf("invalid %s: %s", field, reason)}
}

// NewQueryError wraps a store failure
func NewQueryError(op string, err error) error {
	return &Error{Kind: KindQueryExecution, Message: op, Err: err}
}

// NewConflictError reports an optimistic concurrency failure
func NewConflictError(id any) error {
	return &Error{Kind: KindConflict, Field: "id", Value: id, Message: fmt.Sprintf("todo %v was modified concurrently", id)}
}
