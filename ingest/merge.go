package ingest

import (
	"maps"
	"sort"

	"github.com/jonwraymond/tylolens/lens"
)

// mergeTrace folds next into prev. Fields present in next win; spans are
// merged by id and spans absent from next are kept, so partial realtime
// pushes never lose earlier spans. The result shares no memory with prev.
func mergeTrace(prev, next *lens.Trace) *lens.Trace {
	out := next.Clone()

	prevByID := make(map[string]*lens.Span, len(prev.Spans))
	for _, s := range prev.Spans {
		prevByID[s.ID] = s
	}
	seen := make(map[string]bool, len(out.Spans))
	for i, s := range out.Spans {
		seen[s.ID] = true
		if old, ok := prevByID[s.ID]; ok {
			out.Spans[i] = mergeSpan(old.Clone(), s)
		}
	}
	for _, s := range prev.Spans {
		if !seen[s.ID] {
			out.Spans = append(out.Spans, s.Clone())
		}
	}
	sort.SliceStable(out.Spans, func(i, j int) bool {
		return out.Spans[i].StartTime.Before(out.Spans[j].StartTime)
	})

	out.App = mergeApp(prev.App, out.App)
	if !prev.StartedAt.IsZero() && (out.StartedAt.IsZero() || prev.StartedAt.Before(out.StartedAt)) {
		out.StartedAt = prev.StartedAt
	}
	if out.EndedAt == nil && prev.EndedAt != nil {
		t := *prev.EndedAt
		out.EndedAt = &t
	}
	if out.Analysis == nil || out.Analysis.Transparency == nil {
		if prev.Analysis != nil && prev.Analysis.Transparency != nil {
			tr := *prev.Analysis.Transparency
			out.Analysis = &lens.TraceAnalysis{Transparency: &tr}
		}
	}
	return out
}

func mergeApp(prev, next lens.AppInfo) lens.AppInfo {
	if next.Name == "" {
		next.Name = prev.Name
	}
	if next.Environment == "" {
		next.Environment = prev.Environment
	}
	if next.Version == "" {
		next.Version = prev.Version
	}
	return next
}

// mergeSpan overlays next on prev. Both are owned by the caller.
func mergeSpan(prev, next *lens.Span) *lens.Span {
	if next.ParentID == "" {
		next.ParentID = prev.ParentID
	}
	if next.Model == "" {
		next.Model = prev.Model
	}
	if next.EndTime == nil {
		next.EndTime = prev.EndTime
	}
	if next.DurationMs == nil {
		next.DurationMs = prev.DurationMs
	}
	next.Input = mergeInput(prev.Input, next.Input)
	next.Output = mergeOutput(prev.Output, next.Output)
	if next.Usage == nil {
		next.Usage = prev.Usage
	}
	if next.Cost == nil {
		next.Cost = prev.Cost
	}
	if next.Safety == nil {
		next.Safety = prev.Safety
	}
	next.Analysis = mergeAnalysis(prev.Analysis, next.Analysis)
	if prev.Meta != nil {
		meta := maps.Clone(prev.Meta)
		maps.Copy(meta, next.Meta)
		next.Meta = meta
	}
	return next
}

func mergeInput(prev, next *lens.SpanInput) *lens.SpanInput {
	if prev == nil || next == nil {
		if next != nil {
			return next
		}
		return prev
	}
	out := *prev
	if next.Prompt != "" {
		out.Prompt = next.Prompt
	}
	if next.Messages != nil {
		out.Messages = next.Messages
	}
	if next.Request != nil {
		out.Request = next.Request
	}
	return &out
}

func mergeOutput(prev, next *lens.SpanOutput) *lens.SpanOutput {
	if prev == nil || next == nil {
		if next != nil {
			return next
		}
		return prev
	}
	out := *prev
	if next.Text != "" {
		out.Text = next.Text
	}
	if next.Response != nil {
		out.Response = next.Response
	}
	return &out
}

func mergeAnalysis(prev, next *lens.SpanAnalysis) *lens.SpanAnalysis {
	if prev == nil || next == nil {
		if next != nil {
			return next
		}
		return prev
	}
	out := *prev
	if next.Clarity != nil {
		out.Clarity = next.Clarity
	}
	if next.PIICount != nil {
		out.PIICount = next.PIICount
	}
	if next.PIIDensity != nil {
		out.PIIDensity = next.PIIDensity
	}
	if next.Tokens != nil {
		out.Tokens = next.Tokens
	}
	if next.TScoreContribution != nil {
		out.TScoreContribution = next.TScoreContribution
	}
	return &out
}
