package lens

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned when no trace is active and auto start is
	// disabled.
	ErrNotStarted = errors.New("lens: trace not started; call StartTrace or enable auto start")

	// ErrNilPlugin is returned by Use for a nil plugin.
	ErrNilPlugin = errors.New("lens: plugin is nil")

	// ErrDisposed is returned by Use after Dispose.
	ErrDisposed = errors.New("lens: disposed")

	// ErrInvalidTrace wraps every trace validation failure.
	ErrInvalidTrace = errors.New("lens: invalid trace")

	// ErrInvalidJSON is returned by ValidateJSON for malformed input.
	ErrInvalidJSON = errors.New("lens: invalid JSON")

	// ErrMissingAppName is returned by New when Config.App.Name is empty.
	ErrMissingAppName = errors.New("lens: app name is required")
)

// ValidationError reports the first missing or mistyped trace field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidTrace }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
