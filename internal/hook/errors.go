package hook

import (
	"errors"
	"fmt"
)

// Warning is a user-level complaint raised by a callback. It is shown as
// a warning and never aborts the list it was raised from.
type Warning struct {
	Msg string
}

func (w *Warning) Error() string { return w.Msg }

// Warningf creates a Warning error with a formatted message.
func Warningf(format string, args ...any) error {
	return &Warning{Msg: fmt.Sprintf(format, args...)}
}

// IsWarning reports whether err is (or wraps) a user-level Warning.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}

// ExecutionError wraps a non-warning failure from a callback. It carries
// the list and callback identity so the caller can decide whether to
// escalate or log and continue.
type ExecutionError struct {
	List string
	Hook string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("hook %s in list %s: %v", e.Hook, e.List, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
