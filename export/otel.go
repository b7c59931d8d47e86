package export

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

type otelExporter struct {
	tracer observe.Tracer
}

// OTel replays every span of a trace into tracer with its recorded start
// and end times. Lens parent links become OpenTelemetry parent links; a
// span whose parent is not in the trace becomes a root. Spans still open
// at export end at the trace's EndedAt.
func OTel(tracer observe.Tracer) lens.Exporter {
	if tracer == nil {
		tracer = observe.NoopTracer()
	}
	return &otelExporter{tracer: tracer}
}

func (e *otelExporter) Name() string { return "otel" }

func (e *otelExporter) Export(ctx context.Context, t *lens.Trace) error {
	byID := make(map[string]*lens.Span, len(t.Spans))
	for _, s := range t.Spans {
		byID[s.ID] = s
	}

	started := make(map[string]context.Context, len(t.Spans))
	var order []trace.Span
	var ends []*lens.Span

	var start func(s *lens.Span) context.Context
	visiting := map[string]bool{}
	start = func(s *lens.Span) context.Context {
		if c, ok := started[s.ID]; ok {
			return c
		}
		parentCtx := ctx
		if p, ok := byID[s.ParentID]; ok && s.ParentID != s.ID && !visiting[s.ID] {
			visiting[s.ID] = true
			parentCtx = start(p)
			if c, ok := started[s.ID]; ok {
				return c
			}
		}
		c, span := e.tracer.StartSpan(parentCtx, lens.TelemetryMeta(t.App, s), s.StartTime)
		started[s.ID] = c
		order = append(order, span)
		ends = append(ends, s)
		return c
	}
	for _, s := range t.Spans {
		start(s)
	}

	for i, span := range order {
		s := ends[i]
		var err error
		if msg := s.ErrorMessage(); msg != "" {
			err = errors.New(msg)
		}
		e.tracer.EndSpan(span, endTime(t, s), err)
	}
	return nil
}

func endTime(t *lens.Trace, s *lens.Span) time.Time {
	switch {
	case s.EndTime != nil:
		return *s.EndTime
	case t.EndedAt != nil && !t.EndedAt.Before(s.StartTime):
		return *t.EndedAt
	default:
		return s.StartTime
	}
}
