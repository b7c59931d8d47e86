package lens

import (
	"time"

	"github.com/jonwraymond/tylolens/observe"
)

// ErrorMessage returns the error recorded by End, or "".
func (s *Span) ErrorMessage() string {
	msg, _ := s.Meta["error"].(string)
	return msg
}

// TelemetryMeta describes s for the OpenTelemetry tracer and metrics.
func TelemetryMeta(app AppInfo, s *Span) observe.SpanMeta {
	return observe.SpanMeta{
		TraceID:  s.TraceID,
		SpanID:   s.ID,
		ParentID: s.ParentID,
		Kind:     string(s.Kind),
		Name:     s.Name,
		Model:    s.Model,
		App:      app.Name,
		Env:      app.Environment,
	}
}

// TelemetryRecord summarizes a finished span for metrics.
func TelemetryRecord(app AppInfo, s *Span) observe.SpanRecord {
	rec := observe.SpanRecord{
		Meta:   TelemetryMeta(app, s),
		Failed: s.ErrorMessage() != "",
	}
	if s.DurationMs != nil {
		rec.Duration = time.Duration(*s.DurationMs) * time.Millisecond
	}
	if s.Usage != nil {
		rec.InputTokens = s.Usage.InputTokens
		rec.OutputTokens = s.Usage.OutputTokens
	}
	if s.Cost != nil {
		rec.Cost = s.Cost.Total
		rec.Currency = s.Cost.Currency
	}
	if s.Safety != nil {
		for _, f := range s.Safety.PII.Findings {
			rec.PIIFindings += f.Count
		}
	}
	return rec
}
