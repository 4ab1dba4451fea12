// Package errors classifies collaborator failures and recovers panics at pass boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a collaborator failure so the orchestration layer can decide
// whether to log-and-continue or propagate
type Kind string

const (
	// KindTransient is an I/O failure (network, Redis, file)
	KindTransient Kind = "transient"
	// KindCorrupt is persisted data that could not be decoded
	KindCorrupt Kind = "corrupt"
	// KindUnavailable means the collaborator capability is missing in this runtime
	KindUnavailable Kind = "unavailable"
	// KindRefused is an expected refusal, e.g. scheduling a past-due alarm
	KindRefused Kind = "refused"
	// KindUnknown is anything not produced by this package
	KindUnknown Kind = "unknown"
)

// Error is a collaborator failure tagged with the operation and its kind
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with an operation name and kind. Returns nil when err is nil.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
