package ingest

import "errors"

var (
	// ErrReadOnly is returned by writes in read-only mode.
	ErrReadOnly = errors.New("ingest: read-only mode")

	// ErrInvalidTrace reports a payload without traceId or app.name.
	ErrInvalidTrace = errors.New("ingest: invalid trace payload")

	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("ingest: invalid configuration")

	// ErrClosed is returned by a closed store.
	ErrClosed = errors.New("ingest: store closed")
)
