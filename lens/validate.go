package lens

import (
	"encoding/json"
	"fmt"
)

// Validate checks the fields every consumer of the trace format relies on.
// The first failure is returned as a *ValidationError.
func Validate(t *Trace) error {
	if t == nil {
		return invalid("", "Trace must be an object")
	}
	switch {
	case t.TraceID == "":
		return invalid("traceId", "Missing traceId")
	case t.App.Name == "":
		return invalid("app.name", "Missing app.name")
	case t.StartedAt.IsZero():
		return invalid("startedAt", "Missing startedAt")
	case t.Spans == nil:
		return invalid("spans", "Missing spans[]")
	}
	for i, s := range t.Spans {
		field := fmt.Sprintf("spans[%d]", i)
		switch {
		case s == nil:
			return invalid(field, "Span must be an object")
		case s.ID == "":
			return invalid(field+".id", "Span missing id")
		case s.TraceID == "":
			return invalid(field+".traceId", "Span missing traceId")
		case s.Kind == "":
			return invalid(field+".kind", "Span missing kind")
		case s.Name == "":
			return invalid(field+".name", "Span missing name")
		case s.StartTime.IsZero():
			return invalid(field+".startTime", "Span missing startTime")
		}
	}
	return nil
}

// ValidateJSON validates a serialized trace without decoding it into a
// Trace, so missing and mistyped fields are told apart from zero values.
// Malformed input yields an error wrapping ErrInvalidJSON.
func ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	trace, ok := v.(map[string]any)
	if !ok {
		return invalid("", "Trace must be an object")
	}
	if !nonEmptyString(trace["traceId"]) {
		return invalid("traceId", "Missing traceId")
	}
	app, ok := trace["app"].(map[string]any)
	if !ok {
		return invalid("app", "Missing app")
	}
	if !nonEmptyString(app["name"]) {
		return invalid("app.name", "Missing app.name")
	}
	if !nonEmptyString(trace["startedAt"]) {
		return invalid("startedAt", "Missing startedAt")
	}
	spans, ok := trace["spans"].([]any)
	if !ok {
		return invalid("spans", "Missing spans[]")
	}

	for i, raw := range spans {
		field := fmt.Sprintf("spans[%d]", i)
		span, ok := raw.(map[string]any)
		if !ok {
			return invalid(field, "Span must be an object")
		}
		for _, key := range []string{"id", "traceId", "kind", "name", "startTime"} {
			if !nonEmptyString(span[key]) {
				return invalid(field+"."+key, "Span missing %s", key)
			}
		}
	}
	return nil
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}
