// Package apierr defines the RPC-level error taxonomy (spec.md §7) and maps
// each kind to the HTTP status the transport surfaces.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the rejectable/recoverable/fatal error categories from §7.
// Only the rejectable kinds (InputError, Conflict, NotFound) are represented
// here: ProviderDegraded and LookupUnknown are absorbed at their component
// boundary and never escape as errors, and Fatal is any other error — the
// API layer treats an unrecognized error as a 500.
type Kind int

const (
	// KindInput covers malformed request bodies, unknown provider names,
	// missing required fields, and invalid state transitions.
	KindInput Kind = iota
	// KindConflict is a job that already exists.
	KindConflict
	// KindNotFound is a lookup against a job or artifact that doesn't exist.
	KindNotFound
)

// Error wraps a Kind with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Input constructs a KindInput error.
func Input(format string, args ...any) error {
	return &Error{Kind: KindInput, Msg: fmt.Sprintf(format, args...)}
}

// Conflict constructs a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFound constructs a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// StatusCode maps err to the HTTP status the transport should respond with.
// Any error that isn't an *Error (or doesn't wrap one) maps to 500, matching
// §7 "Fatal: ... The surrounding transport surfaces a 500."
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
