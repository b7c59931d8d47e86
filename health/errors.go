package health

import "errors"

var (
	// ErrCheckTimeout indicates a check did not finish before the deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked indicates a check panicked.
	ErrCheckPanicked = errors.New("health: check panicked")
)
