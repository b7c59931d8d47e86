package plugins

import (
	"context"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

// Metrics records every finished span with m: count, errors, duration,
// tokens by direction, cost by currency and PII findings.
func Metrics(m observe.Metrics) lens.Plugin {
	if m == nil {
		m = observe.NoopMetrics()
	}
	return lens.PluginFunc("metrics", func(pc lens.PluginContext) (func(), error) {
		sub := pc.On(lens.EventSpanEnd, func(ev lens.Event) {
			if ev.Span == nil || ev.Trace == nil {
				return
			}
			m.RecordSpan(context.Background(), lens.TelemetryRecord(ev.Trace.App, ev.Span))
		})
		return sub.Unsubscribe, nil
	})
}
