package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBaseURL indicates a client without an endpoint.
	ErrMissingBaseURL = errors.New("provider: base URL is required")

	// ErrMissingModel indicates neither a default nor a per-call model.
	ErrMissingModel = errors.New("provider: model is required")

	// ErrMissingWrapper indicates a client without a Lens.
	ErrMissingWrapper = errors.New("provider: lens is required")
)

// StatusError reports a non-2xx answer from a model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider: status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider: status %d: %s", e.StatusCode, e.Body)
}
