package export

import (
	"time"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/pricing"
)

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func at(ms int) *time.Time {
	v := t0.Add(time.Duration(ms) * time.Millisecond)
	return &v
}

// fixtureTrace is a finished trace with an llm root, an http child and a
// failed tool span.
func fixtureTrace() *lens.Trace {
	return &lens.Trace{
		TraceID:   "trace_1",
		App:       lens.AppInfo{Name: "checkout", Environment: "test"},
		StartedAt: t0,
		EndedAt:   at(900),
		Spans: []*lens.Span{
			{
				ID:         "span_llm",
				TraceID:    "trace_1",
				Kind:       lens.KindLLM,
				Name:       "llm.call",
				Model:      "gpt-4o-mini",
				StartTime:  t0,
				EndTime:    at(500),
				DurationMs: lens.Ptr[int64](500),
				Usage:      &lens.Usage{InputTokens: 1000, OutputTokens: 500, TotalTokens: 1500},
				Cost:       &pricing.Cost{Currency: "USD", Total: 0.0125, Input: 0.005, Output: 0.0075},
				Safety: &pii.Safety{
					PII:  pii.Report{Findings: []pii.Finding{{Type: pii.Email, Count: 1}}, HasFindings: true},
					Risk: pii.RiskMedium,
				},
			},
			{
				ID:         "span_http",
				TraceID:    "trace_1",
				ParentID:   "span_llm",
				Kind:       lens.KindHTTP,
				Name:       "http.client",
				StartTime:  *at(100),
				EndTime:    at(400),
				DurationMs: lens.Ptr[int64](300),
			},
			{
				ID:         "span_tool",
				TraceID:    "trace_1",
				Kind:       lens.KindTool,
				Name:       "tool.lookup",
				StartTime:  *at(600),
				EndTime:    at(700),
				DurationMs: lens.Ptr[int64](100),
				Usage:      &lens.Usage{TotalTokens: 20},
				Meta:       map[string]any{"error": "lookup failed"},
			},
		},
	}
}
