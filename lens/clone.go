package lens

import (
	"maps"
	"slices"
)

// Clone returns a deep copy of the trace.
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	out := *t
	out.EndedAt = clonePtr(t.EndedAt)
	out.Spans = make([]*Span, len(t.Spans))
	for i, s := range t.Spans {
		out.Spans[i] = s.Clone()
	}
	if t.Analysis != nil {
		a := *t.Analysis
		if a.Transparency != nil {
			tr := *a.Transparency
			a.Transparency = &tr
		}
		out.Analysis = &a
	}
	return &out
}

// Clone returns a deep copy of the span.
func (s *Span) Clone() *Span {
	if s == nil {
		return nil
	}
	out := *s
	out.EndTime = clonePtr(s.EndTime)
	out.DurationMs = clonePtr(s.DurationMs)
	out.Usage = clonePtr(s.Usage)
	out.Meta = cloneMap(s.Meta)

	if s.Input != nil {
		in := *s.Input
		in.Messages = cloneValue(s.Input.Messages)
		if in.Request != nil {
			req := *in.Request
			req.Headers = maps.Clone(req.Headers)
			in.Request = &req
		}
		out.Input = &in
	}
	if s.Output != nil {
		o := *s.Output
		o.Response = cloneResponse(o.Response)
		out.Output = &o
	}
	if s.Cost != nil {
		c := *s.Cost
		c.PricePer1KInput = clonePtr(c.PricePer1KInput)
		c.PricePer1KOutput = clonePtr(c.PricePer1KOutput)
		out.Cost = &c
	}
	if s.Safety != nil {
		sf := *s.Safety
		sf.PII.Findings = slices.Clone(sf.PII.Findings)
		sf.PII.Evidence = slices.Clone(sf.PII.Evidence)
		out.Safety = &sf
	}
	out.Analysis = s.Analysis.clone()
	return &out
}

func (a *SpanAnalysis) clone() *SpanAnalysis {
	if a == nil {
		return nil
	}
	return &SpanAnalysis{
		Clarity:            clonePtr(a.Clarity),
		PIICount:           clonePtr(a.PIICount),
		PIIDensity:         clonePtr(a.PIIDensity),
		Tokens:             clonePtr(a.Tokens),
		TScoreContribution: clonePtr(a.TScoreContribution),
	}
}

func cloneResponse(r *HTTPResponse) *HTTPResponse {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = maps.Clone(r.Headers)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the JSON-shaped containers a caller may place in meta
// or messages. Other values are shared.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, e := range x {
			out[i] = cloneMap(e)
		}
		return out
	case map[string]string:
		return maps.Clone(x)
	case []string:
		return slices.Clone(x)
	default:
		return v
	}
}
