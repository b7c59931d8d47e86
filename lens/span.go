package lens

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jonwraymond/tylolens/observe"
)

// SpanHandle mutates and closes one span. Its methods are safe for
// concurrent use.
type SpanHandle struct {
	lens  *Lens
	trace *Trace
	span  *Span
	ended bool
}

// ID returns the span id.
func (h *SpanHandle) ID() string { return h.span.ID }

// TraceID returns the id of the trace that owns the span.
func (h *SpanHandle) TraceID() string { return h.trace.TraceID }

// Span returns a snapshot of the span.
func (h *SpanHandle) Span() *Span {
	h.lens.mu.Lock()
	defer h.lens.mu.Unlock()
	return h.span.Clone()
}

// Context returns ctx carrying this span as the parent of spans started
// with it.
func (h *SpanHandle) Context(ctx context.Context) context.Context {
	return ContextWithSpan(ctx, h)
}

// StartSpan opens a span in the active trace, starting a trace when none
// is active or the active one has ended (unless auto start is disabled).
func (l *Lens) StartSpan(ctx context.Context, start SpanStart) (*SpanHandle, error) {
	l.mu.Lock()
	tr, started, err := l.currentLocked(true)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	parentID := start.ParentID
	if parentID == "" {
		if ref, ok := spanRefFromContext(ctx); ok && ref.traceID == tr.TraceID {
			parentID = ref.spanID
		}
	}
	if parentID == "" && len(l.stack) > 0 {
		parentID = l.stack[len(l.stack)-1]
	}

	span := &Span{
		ID:        l.newID(string(start.Kind)),
		TraceID:   tr.TraceID,
		ParentID:  parentID,
		Kind:      start.Kind,
		Name:      start.Name,
		Model:     start.Model,
		StartTime: l.now(),
		Input:     start.Input,
		Meta:      cloneMap(start.Meta),
	}
	tr.Spans = append(tr.Spans, span)
	l.stack = append(l.stack, span.ID)
	snap := l.snapshotFor(EventSpanStart, span)
	l.mu.Unlock()

	if started {
		l.publish(Event{Type: EventTraceStart, Trace: tr})
	}
	if snap != nil {
		l.publish(Event{Type: EventSpanStart, Trace: tr, Span: snap})
	}

	return &SpanHandle{lens: l, trace: tr, span: span}, nil
}

// snapshotFor clones span only when someone listens for t.
func (l *Lens) snapshotFor(t EventType, span *Span) *Span {
	if l.bus.Len(t) == 0 {
		return nil
	}
	return span.Clone()
}

// Update merges u into the span and publishes span.update. Updates after
// End are dropped.
func (h *SpanHandle) Update(u SpanUpdate) {
	l := h.lens
	l.mu.Lock()
	if h.ended {
		l.mu.Unlock()
		return
	}
	s := h.span

	if u.Output != nil {
		out := SpanOutput{}
		if s.Output != nil {
			out = *s.Output
		}
		if u.Output.Text != nil {
			out.Text = *u.Output.Text
		}
		if u.Output.Response != nil {
			out.Response = mergeResponse(out.Response, u.Output.Response)
		}
		s.Output = &out
	}

	if u.Usage != nil {
		usage := Usage{}
		if s.Usage != nil {
			usage = *s.Usage
		}
		if u.Usage.InputTokens != nil {
			usage.InputTokens = *u.Usage.InputTokens
		}
		if u.Usage.OutputTokens != nil {
			usage.OutputTokens = *u.Usage.OutputTokens
		}
		if u.Usage.TotalTokens != nil {
			usage.TotalTokens = *u.Usage.TotalTokens
		} else {
			usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		}
		s.Usage = &usage
	}

	if u.Analysis != nil {
		s.Analysis = mergeAnalysis(s.Analysis, u.Analysis)
	}
	if u.Meta != nil {
		s.Meta = mergeMeta(s.Meta, u.Meta)
	}

	snap := l.snapshotFor(EventSpanUpdate, s)
	l.mu.Unlock()

	if snap != nil {
		l.publish(Event{Type: EventSpanUpdate, Trace: h.trace, Span: snap, Update: &u})
	}
}

// End stamps the span, applies e authoritatively, removes the span from
// the stack and publishes span.end. Only the first call has effect.
func (h *SpanHandle) End(e SpanEnd) {
	l := h.lens
	l.mu.Lock()
	if h.ended {
		l.mu.Unlock()
		return
	}
	h.ended = true
	s := h.span

	end := l.now()
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	d := DurationMs(s.StartTime, end)
	s.EndTime = &end
	s.DurationMs = &d

	if e.Output != nil {
		s.Output = e.Output
	}
	if e.Usage != nil {
		s.Usage = e.Usage
	}
	if e.Cost != nil {
		s.Cost = e.Cost
	}
	if e.Safety != nil {
		s.Safety = e.Safety
	}
	if e.Analysis != nil {
		s.Analysis = e.Analysis
	}
	if e.Meta != nil {
		s.Meta = mergeMeta(s.Meta, e.Meta)
	}
	if e.Err != nil {
		s.Meta = mergeMeta(s.Meta, map[string]any{"error": e.Err.Error()})
	}

	l.popLocked(s.ID)
	snap := l.snapshotFor(EventSpanEnd, s)
	l.mu.Unlock()

	if snap != nil {
		l.publish(Event{Type: EventSpanEnd, Trace: h.trace, Span: snap})
	}
}

// Fail ends the span recording err.
func (h *SpanHandle) Fail(err error) {
	h.End(SpanEnd{Err: err})
}

// popLocked removes id from the span stack: the top when it matches,
// otherwise the innermost occurrence, leaving the rest in order.
func (l *Lens) popLocked(id string) {
	n := len(l.stack)
	if n > 0 && l.stack[n-1] == id {
		l.stack = l.stack[:n-1]
		return
	}
	for i := n - 1; i >= 0; i-- {
		if l.stack[i] == id {
			l.stack = slices.Delete(l.stack, i, i+1)
			l.logger.Debug(context.Background(), "span ended out of order", observe.F("span_id", id))
			return
		}
	}
}

// openSpans returns a copy of the span stack, innermost last.
func (l *Lens) openSpans() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.stack)
}

// WithSpan runs fn inside a new span whose context parents nested spans.
// The span ends with fn's error, which is returned unchanged. A panic in
// fn ends the span with an error and is re-raised.
func (l *Lens) WithSpan(ctx context.Context, start SpanStart, fn func(ctx context.Context) error) (err error) {
	h, err := l.StartSpan(ctx, start)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			h.End(SpanEnd{Err: fmt.Errorf("panic: %v", r)})
			panic(r)
		}
	}()

	if err := fn(h.Context(ctx)); err != nil {
		h.End(SpanEnd{Err: err})
		return err
	}
	h.End(SpanEnd{})
	return nil
}

func mergeResponse(prev, next *HTTPResponse) *HTTPResponse {
	out := HTTPResponse{}
	if prev != nil {
		out = *prev
	}
	if next.Status != 0 {
		out.Status = next.Status
	}
	if next.Headers != nil {
		out.Headers = next.Headers
	}
	if next.Body != "" {
		out.Body = next.Body
	}
	return &out
}

func mergeAnalysis(prev, next *SpanAnalysis) *SpanAnalysis {
	out := prev.clone()
	if out == nil {
		out = &SpanAnalysis{}
	}
	if next.Clarity != nil {
		out.Clarity = clonePtr(next.Clarity)
	}
	if next.PIICount != nil {
		out.PIICount = clonePtr(next.PIICount)
	}
	if next.PIIDensity != nil {
		out.PIIDensity = clonePtr(next.PIIDensity)
	}
	if next.Tokens != nil {
		out.Tokens = clonePtr(next.Tokens)
	}
	if next.TScoreContribution != nil {
		out.TScoreContribution = clonePtr(next.TScoreContribution)
	}
	return out
}

func mergeMeta(prev, next map[string]any) map[string]any {
	out := make(map[string]any, len(prev)+len(next))
	maps.Copy(out, prev)
	maps.Copy(out, next)
	return out
}
