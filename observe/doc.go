// Package observe provides the ambient telemetry primitives of tylolens:
// a redacting JSON logger, an OpenTelemetry tracer adapter that replays
// finished lens spans, and lens-level metrics.
//
// It performs no I/O beyond exporter setup. The lens engine, plugins,
// exporters and the ingest server receive an Observer (or its parts) and
// never construct providers themselves.
package observe
