// Package apperr defines the typed error taxonomy shared across the engine.
//
// Errors carry a Kind and a Recoverable flag so callers can decide between
// fallback (e.g. attribute-only search when the text index is unavailable)
// and surfacing a message to the user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	// KindIndexUnavailable means the text index is missing or not
	// initialized. Recoverable: callers fall back to the in-memory
	// attribute evaluator.
	KindIndexUnavailable Kind = "index-unavailable"

	// KindQuery covers malformed queries, unsupported operators for the
	// chosen code path, and over-long tokens. Recoverable: surface to the
	// user, optionally retry in a degraded mode.
	KindQuery Kind = "query"

	// KindStorage wraps an underlying query-execution failure with the
	// original message preserved for diagnostics. Recoverable, logged.
	KindStorage Kind = "storage"

	// KindMaintenance marks a rebuild/sync failure that propagated out of
	// its transaction after rollback. Fatal for that operation only.
	KindMaintenance Kind = "maintenance"
)

// Error is the structured error type for the search engine.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error without an underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Recoverable: kind != KindMaintenance}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an Error around an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Recoverable: kind != KindMaintenance, Err: err}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Common sentinels for the note store layer.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
