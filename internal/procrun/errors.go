package procrun

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure modes of a bounded process run. Callers
// switch on kinds through the predicate functions, never by inspecting
// error text.
type Kind int

const (
	// KindTimeout: the process exceeded its wall-clock bound and was killed.
	KindTimeout Kind = iota + 1
	// KindOutputTooLarge: combined captured output crossed the size cap.
	KindOutputTooLarge
	// KindLaunch: the process could not be started (binary missing, spawn
	// failure) or its streams broke mid-run.
	KindLaunch
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindOutputTooLarge:
		return "output too large"
	case KindLaunch:
		return "launch failure"
	default:
		return "unknown"
	}
}

// Error is the structured failure returned by Runner.Run. Prefer the
// predicate functions (IsTimeout, IsOutputTooLarge, IsLaunchError) over
// asserting on this type directly.
type Error struct {
	Kind    Kind
	Command string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a process run killed on timeout.
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// IsOutputTooLarge reports whether err is a run aborted by the output cap.
func IsOutputTooLarge(err error) bool { return hasKind(err, KindOutputTooLarge) }

// IsLaunchError reports whether err is a process that failed to start.
func IsLaunchError(err error) bool { return hasKind(err, KindLaunch) }

func hasKind(err error, k Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == k
}
