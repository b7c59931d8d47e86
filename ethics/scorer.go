package ethics

import (
	"math"
	"strings"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/tokens"
)

// Formula describes the transparency score in the exported record.
const Formula = "T_score = (Σ(C_clarity · W_c) − Σ(P_pii · W_p)) / T_tokens, where C_clarity = clarity(output) · output_tokens and P_pii = pii_count · 1000"

// piiPenalty is the token-equivalent penalty per PII finding.
const piiPenalty = 1000

// Weights scale the clarity and PII terms.
type Weights = lens.Weights

// DefaultWeights weighs clarity and PII equally.
func DefaultWeights() Weights {
	return Weights{Clarity: 1, PII: 1}
}

// Scorer computes transparency scores.
//
// Contract:
// - Concurrency: a Scorer is immutable and safe for concurrent use.
// - Ownership: Transparency only reads the trace; Annotate writes the
// analysis fields of the trace it is given and nothing else.
type Scorer struct {
	// Weights scale the score terms. A zero field selects its default of 1,
	// so a partial override keeps the other term.
	Weights Weights

	// Estimator counts tokens when a span has no declared usage.
	// Default: tokens.Default.
	Estimator tokens.Estimator
}

// NewScorer returns a Scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{Weights: w}
}

func (s *Scorer) weights() Weights {
	w := DefaultWeights()
	if s == nil {
		return w
	}
	if s.Weights.Clarity != 0 {
		w.Clarity = s.Weights.Clarity
	}
	if s.Weights.PII != 0 {
		w.PII = s.Weights.PII
	}
	return w
}

func (s *Scorer) estimator() tokens.Estimator {
	if s == nil {
		return tokens.Default
	}
	return tokens.Or(s.Estimator)
}

// spanMetrics are the per-span inputs of the score.
type spanMetrics struct {
	tokens       int
	outputTokens int
	clarity      float64
	piiCount     int
}

func (s *Scorer) measure(span *lens.Span) spanMetrics {
	est := s.estimator()
	prompt, output := spanTexts(span)

	m := spanMetrics{clarity: Clarity(output)}
	if span.Usage != nil {
		m.tokens = span.Usage.TotalTokens
		m.outputTokens = span.Usage.OutputTokens
	} else {
		m.tokens = est.Estimate(joinNonEmpty(prompt, output))
		m.outputTokens = est.Estimate(output)
	}

	if span.Safety != nil && len(span.Safety.PII.Findings) > 0 {
		m.piiCount = pii.Total(span.Safety.PII.Findings)
	} else {
		m.piiCount = pii.Total(pii.Scan(joinNonEmpty(prompt, output)))
	}
	return m
}

// Transparency scores t without modifying it.
func (s *Scorer) Transparency(t *lens.Trace) lens.Transparency {
	w := s.weights()
	out := lens.Transparency{Weights: w, Formula: Formula}
	if t == nil {
		out.ScoreScaled = scale(0)
		return out
	}

	for _, span := range t.Spans {
		if span == nil {
			continue
		}
		m := s.measure(span)
		out.Tokens += m.tokens
		out.ClaritySum += m.clarity * float64(m.outputTokens) * w.Clarity
		out.PIIPenaltySum += float64(m.piiCount) * piiPenalty * w.PII
	}

	out.Score = (out.ClaritySum - out.PIIPenaltySum) / float64(max(1, out.Tokens))
	out.ScoreScaled = scale(out.Score)
	return out
}

// Annotate scores t in place: every span's analysis gains its tokens,
// clarity, PII count and density, and its contribution to the score, and
// the trace analysis gains the transparency record. Other analysis fields
// are preserved.
func (s *Scorer) Annotate(t *lens.Trace) {
	if t == nil {
		return
	}
	w := s.weights()

	for _, span := range t.Spans {
		if span == nil {
			continue
		}
		m := s.measure(span)
		denom := float64(max(1, m.tokens))
		contribution := (m.clarity*float64(m.outputTokens)*w.Clarity - float64(m.piiCount)*piiPenalty*w.PII) / denom

		if span.Analysis == nil {
			span.Analysis = &lens.SpanAnalysis{}
		}
		span.Analysis.Tokens = lens.Ptr(m.tokens)
		span.Analysis.Clarity = lens.Ptr(m.clarity)
		span.Analysis.PIICount = lens.Ptr(m.piiCount)
		span.Analysis.PIIDensity = lens.Ptr(float64(m.piiCount) / denom)
		span.Analysis.TScoreContribution = lens.Ptr(contribution)
	}

	tr := s.Transparency(t)
	if t.Analysis == nil {
		t.Analysis = &lens.TraceAnalysis{}
	}
	t.Analysis.Transparency = &tr
}

// scale maps a raw score onto [0,100] for display.
func scale(score float64) float64 {
	return math.Max(0, math.Min(100, (score+1)*50))
}

func spanTexts(span *lens.Span) (prompt, output string) {
	if span.Input != nil {
		prompt = span.Input.Prompt
	}
	if span.Output != nil {
		output = span.Output.Text
	}
	return prompt, output
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
