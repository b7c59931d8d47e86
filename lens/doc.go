// Package lens is the trace and span engine of tylolens.
//
// A Lens owns one active Trace at a time. Spans are opened with StartSpan,
// WithSpan or by a function returned from WrapLLM, mutated incrementally
// with SpanHandle.Update while a call streams, and closed exactly once with
// SpanHandle.End. Every lifecycle step publishes an Event on the Lens bus;
// plugins subscribe to those events to add behavior (auto export, ethics
// scoring, remote push) without the engine knowing about them.
//
// # Parent inference
//
// A new span's parent is, in order: SpanStart.ParentID when set, the span
// carried by the context (see ContextWithSpan), the innermost open span on
// the engine's span stack, or none. The stack heuristic assumes roughly
// nested, single-flow usage; concurrent call trees should pass contexts.
//
// # Update versus End
//
// Update merges: output text is replaced, the nested response is merged
// field by field, usage is merged over zeros and its total recomputed when
// absent, analysis and meta are merged key by key. End is authoritative:
// output, usage, cost, safety and analysis replace prior values, meta is
// merged and an error message lands in meta["error"].
//
// # Concurrency
//
// A Lens is safe for concurrent use. Events are delivered synchronously on
// the goroutine that caused them, after the engine lock is released, so
// handlers may call back into the Lens. Span payloads in events are
// snapshots; Event.Trace is the live trace and must be read through
// Lens.Snapshot when other goroutines may be recording spans.
package lens
