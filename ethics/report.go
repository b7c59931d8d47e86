package ethics

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/pii"
)

const reportTime = "2006-01-02T15:04:05.000Z07:00"

// ReportSummary holds the aggregate figures of a compliance report.
type ReportSummary struct {
	Spans       int
	TotalTokens int
	TotalCost   float64
	PII         []pii.Finding
	HasPII      bool
}

// Summarize aggregates declared tokens, cost and PII findings over every
// span. Findings are merged by type in order of first appearance. HasPII
// reports whether any span's safety record flagged findings.
func Summarize(t *lens.Trace) ReportSummary {
	var sum ReportSummary
	if t == nil {
		return sum
	}
	index := map[pii.Type]int{}
	for _, s := range t.Spans {
		if s == nil {
			continue
		}
		sum.Spans++
		if s.Usage != nil {
			sum.TotalTokens += s.Usage.TotalTokens
		}
		if s.Cost != nil {
			sum.TotalCost += s.Cost.Total
		}
		if s.Safety == nil {
			continue
		}
		sum.HasPII = sum.HasPII || s.Safety.PII.HasFindings
		for _, f := range s.Safety.PII.Findings {
			if i, ok := index[f.Type]; ok {
				sum.PII[i].Count += f.Count
				continue
			}
			index[f.Type] = len(sum.PII)
			sum.PII = append(sum.PII, f)
		}
	}
	return sum
}

// ComplianceReport renders a markdown summary of t for privacy review:
// identity, token and cost totals, PII findings by type, and standing
// recommendations.
func ComplianceReport(t *lens.Trace) string {
	if t == nil {
		t = &lens.Trace{}
	}
	sum := Summarize(t)

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Tylo-Lens Compliance Report")
	line("")
	line("- Trace ID: `%s`", t.TraceID)
	line("- App: **%s**", t.App.Name)
	if t.App.Environment != "" {
		line("- Environment: `%s`", t.App.Environment)
	}
	line("- Started: `%s`", formatTime(t.StartedAt))
	if t.EndedAt != nil {
		line("- Ended: `%s`", formatTime(*t.EndedAt))
	}
	line("")
	line("## Summary")
	line("- Spans: **%d**", sum.Spans)
	line("- Total tokens (estimated/declared): **%d**", sum.TotalTokens)
	line("- Total cost (estimated): **%.6f**", sum.TotalCost)
	if t.Analysis != nil && t.Analysis.Transparency != nil {
		line("- Transparency score: **%.1f** / 100", t.Analysis.Transparency.ScoreScaled)
	}
	line("")
	line("## PII Findings")
	if len(sum.PII) == 0 {
		line("No PII patterns detected.")
	} else {
		for _, f := range sum.PII {
			line("- %s: **%d**", f.Type, f.Count)
		}
		line("")
		line("> Note: Regex-based detection can generate false positives. Treat this as a signal, not a verdict.")
	}
	line("")
	line("## Recommendations")
	line("- Default to redaction in production environments.")
	line("- Avoid storing raw prompts/outputs unless users explicitly consent.")
	b.WriteString("- Add allowlists/denylists for org-specific secrets (API keys, internal IDs).")
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(reportTime)
}
