package run

import (
	"errors"
	"fmt"
)

// Sentinel errors for supervisor misuse.
var (
	ErrNotLaunched     = errors.New("run not launched")
	ErrAlreadyLaunched = errors.New("run already launched")
)

// ExecutionError reports a backend process or operation that failed on its
// own: a nonzero exit with no abort requested, a spawn failure, or a dead
// event channel. It is never produced for runs the caller cancelled.
type ExecutionError struct {
	Cause    error
	Message  string
	Stderr   string
	ExitCode int
}

func (e *ExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("execution failed: %s (exit code %d)", e.Message, e.ExitCode)
	}
	return fmt.Sprintf("execution failed: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// AbortError is the cancellation outcome. It is a distinct terminal result,
// not a backend failure; callers that only inspect errors can recognize it
// by Code.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return "run interrupted"
	}
	return "run interrupted: " + e.Reason
}

// Code identifies cancellation for callers that only check errors.
func (e *AbortError) Code() string { return "interrupted" }

// IsInterrupted reports whether err marks a cancelled run.
func IsInterrupted(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}
