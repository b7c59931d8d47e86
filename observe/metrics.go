package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SpanRecord is the metric-relevant summary of one finished span.
type SpanRecord struct {
	Meta         SpanMeta
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	Cost         float64
	Currency     string
	PIIFindings  int
	Failed       bool
}

// Metrics records lens span metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordSpan(ctx context.Context, rec SpanRecord)
}

type otelMetrics struct {
	spans    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	tokens   metric.Int64Counter
	cost     metric.Float64Counter
	pii      metric.Int64Counter
}

// NewMetrics creates the lens instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	var (
		m   otelMetrics
		err error
	)
	if m.spans, err = meter.Int64Counter("lens.span.total",
		metric.WithDescription("Finished lens spans"),
		metric.WithUnit("{span}"),
	); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("lens.span.errors",
		metric.WithDescription("Lens spans that ended with an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("lens.span.duration_ms",
		metric.WithDescription("Lens span duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.tokens, err = meter.Int64Counter("lens.tokens",
		metric.WithDescription("Tokens consumed by LLM spans"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if m.cost, err = meter.Float64Counter("lens.cost",
		metric.WithDescription("Computed spend of LLM spans"),
	); err != nil {
		return nil, err
	}
	if m.pii, err = meter.Int64Counter("lens.pii.findings",
		metric.WithDescription("PII findings detected in span payloads"),
		metric.WithUnit("{finding}"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *otelMetrics) RecordSpan(ctx context.Context, rec SpanRecord) {
	attrs := []attribute.KeyValue{
		attribute.String("lens.kind", rec.Meta.Kind),
		attribute.String("lens.span_name", rec.Meta.Name),
	}
	if rec.Meta.Model != "" {
		attrs = append(attrs, attribute.String("gen_ai.request.model", rec.Meta.Model))
	}
	opt := metric.WithAttributes(attrs...)

	m.spans.Add(ctx, 1, opt)
	if rec.Failed {
		m.errors.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(rec.Duration.Milliseconds()), opt)

	if rec.InputTokens > 0 {
		m.tokens.Add(ctx, int64(rec.InputTokens),
			metric.WithAttributes(append(attrs, attribute.String("direction", "input"))...))
	}
	if rec.OutputTokens > 0 {
		m.tokens.Add(ctx, int64(rec.OutputTokens),
			metric.WithAttributes(append(attrs, attribute.String("direction", "output"))...))
	}
	if rec.Cost > 0 {
		m.cost.Add(ctx, rec.Cost,
			metric.WithAttributes(append(attrs, attribute.String("currency", rec.Currency))...))
	}
	if rec.PIIFindings > 0 {
		m.pii.Add(ctx, int64(rec.PIIFindings), opt)
	}
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordSpan(context.Context, SpanRecord) {}
