package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SpanMeta describes a finished lens span for telemetry purposes.
type SpanMeta struct {
	TraceID  string // Lens trace identifier
	SpanID   string // Lens span identifier
	ParentID string // Lens parent span identifier (optional)
	Kind     string // llm|http|mcp|tool
	Name     string // Span name (required)
	Model    string // Model identifier (optional)
	App      string // Application name (optional)
	Env      string // Deployment environment (optional)
}

// Attributes returns the OpenTelemetry attributes for this span.
func (m SpanMeta) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("lens.trace_id", m.TraceID),
		attribute.String("lens.span_id", m.SpanID),
		attribute.String("lens.kind", m.Kind),
	}
	if m.ParentID != "" {
		attrs = append(attrs, attribute.String("lens.parent_id", m.ParentID))
	}
	if m.Model != "" {
		attrs = append(attrs, attribute.String("gen_ai.request.model", m.Model))
	}
	if m.App != "" {
		attrs = append(attrs, attribute.String("lens.app", m.App))
	}
	if m.Env != "" {
		attrs = append(attrs, attribute.String("deployment.environment", m.Env))
	}
	return attrs
}

// spanKind maps lens kinds onto OpenTelemetry kinds. Outbound calls are
// clients; tool spans are internal work.
func (m SpanMeta) spanKind() trace.SpanKind {
	switch m.Kind {
	case "llm", "http", "mcp":
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

// Tracer replays lens spans into OpenTelemetry with their recorded
// timestamps.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan derives the returned context from ctx so children nest.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span at the given start time.
	StartSpan(ctx context.Context, meta SpanMeta, start time.Time) (context.Context, trace.Span)

	// EndSpan ends the span at the given time, recording any error.
	EndSpan(span trace.Span, end time.Time, err error)
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NoopTracer()
	}
	return &otelTracer{tracer: t}
}

func (t *otelTracer) StartSpan(ctx context.Context, meta SpanMeta, start time.Time) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{
		trace.WithAttributes(meta.Attributes()...),
		trace.WithSpanKind(meta.spanKind()),
	}
	if !start.IsZero() {
		opts = append(opts, trace.WithTimestamp(start))
	}
	return t.tracer.Start(ctx, meta.Name, opts...)
}

func (t *otelTracer) EndSpan(span trace.Span, end time.Time, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if end.IsZero() {
		span.End()
		return
	}
	span.End(trace.WithTimestamp(end))
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() Tracer {
	return &otelTracer{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
