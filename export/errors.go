package export

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL is returned by Webhook when no URL is configured.
	ErrMissingURL = errors.New("export: webhook url is required")

	// ErrMissingPath is returned by File when no path is configured.
	ErrMissingPath = errors.New("export: file path is required")

	// ErrWebhookRejected matches every StatusError.
	ErrWebhookRejected = errors.New("export: webhook rejected trace")
)

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook export failed: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrWebhookRejected }
