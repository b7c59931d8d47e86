package lens

import "context"

type spanKey struct{}

type spanRef struct {
	traceID string
	spanID  string
}

// ContextWithSpan returns ctx carrying h as the parent for spans started
// with the returned context.
func ContextWithSpan(ctx context.Context, h *SpanHandle) context.Context {
	if h == nil {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, spanRef{traceID: h.TraceID(), spanID: h.ID()})
}

// SpanIDFromContext returns the span id carried by ctx.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	ref, ok := spanRefFromContext(ctx)
	return ref.spanID, ok
}

func spanRefFromContext(ctx context.Context) (spanRef, bool) {
	if ctx == nil {
		return spanRef{}, false
	}
	ref, ok := ctx.Value(spanKey{}).(spanRef)
	return ref, ok
}
