package pii

import "strings"

// RiskLevel is a coarse privacy risk tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskNote accompanies every Safety record.
const RiskNote = "heuristic regex-based signal; false positives and misses are expected; not a compliance verdict"

// highRiskTotal is the total finding count at which any mix becomes high risk.
const highRiskTotal = 5

// Risk classifies findings: none is low; any credit-card, SSN or API-key
// finding, or five or more findings in total, is high; anything else is
// medium.
func Risk(findings []Finding) RiskLevel {
	total := Total(findings)
	if total == 0 {
		return RiskLow
	}
	if total >= highRiskTotal {
		return RiskHigh
	}
	for _, f := range findings {
		if highSensitivity[f.Type] && f.Count > 0 {
			return RiskHigh
		}
	}
	return RiskMedium
}

// Report is the PII section of a Safety record.
type Report struct {
	Findings    []Finding  `json:"findings"`
	HasFindings bool       `json:"hasFindings"`
	Evidence    []Evidence `json:"evidence,omitempty"`
}

// Safety is the privacy assessment attached to a span.
type Safety struct {
	PII  Report    `json:"pii"`
	Risk RiskLevel `json:"risk"`
	Note string    `json:"note,omitempty"`
}

// AnalyzeOptions controls Analyze.
type AnalyzeOptions struct {
	// Evidence enables per-occurrence evidence collection.
	Evidence bool

	// EvidenceOptions tunes evidence records when Evidence is set.
	EvidenceOptions EvidenceOptions
}

// Analyze scans prompt and output jointly for findings and risk, and
// collects evidence per field so offsets stay relative to each text.
func Analyze(prompt, output string, opts AnalyzeOptions) Safety {
	parts := make([]string, 0, 2)
	for _, p := range []string{prompt, output} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	findings := Scan(strings.Join(parts, "\n"))

	safety := Safety{
		PII: Report{
			Findings:    findings,
			HasFindings: len(findings) > 0,
		},
		Risk: Risk(findings),
		Note: RiskNote,
	}

	if opts.Evidence {
		var evidence []Evidence
		evidence = append(evidence, CollectEvidence(prompt, FieldPrompt, opts.EvidenceOptions)...)
		evidence = append(evidence, CollectEvidence(output, FieldOutput, opts.EvidenceOptions)...)
		safety.PII.Evidence = evidence
	}
	return safety
}
