package scan

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by this package wraps exactly one.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrEncodeFailure      = errors.New("encode failure")
)

// Error reports which stage failed, the failure kind, and the underlying
// cause. errors.Is matches both Kind and Err.
type Error struct {
	Stage string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(stage string, kind, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: cause}
}

func errorf(stage string, kind error, format string, args ...any) *Error {
	return &Error{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// NeedsManualCrop reports whether err means no usable document outline was
// found, so the user has to place the corners by hand.
func NeedsManualCrop(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDegenerateGeometry)
}

// KindName returns the snake_case name of err's failure kind: invalid_input,
// not_found, degenerate_geometry, encode_failure, canceled, or internal for
// anything else. It returns "" for a nil error.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, ErrEncodeFailure):
		return "encode_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// Outcome is KindName with "ok" for success; it labels the scan counter.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindName(err)
}
