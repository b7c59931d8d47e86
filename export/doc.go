// Package export provides the terminal sinks for finished traces.
//
// Every constructor returns a lens.Exporter. Console prints a one-line
// summary per trace, File writes the trace document, Webhook posts it to
// an HTTP endpoint (optionally with a signed bearer token the ingestion
// server can verify) and OTel replays the spans into an OpenTelemetry
// tracer with their recorded timestamps.
//
// Exporters are registered with lens.Config.Exporters, Lens.AddExporter
// or the plugins.Exporter plugin. Failures are returned to the Lens,
// which logs them; nothing is retried.
package export
