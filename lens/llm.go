package lens

import (
	"context"
	"encoding/json"
	"maps"
	"math"

	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/pricing"
	"github.com/jonwraymond/tylolens/tokens"
)

// LLMRequest is the input of a wrapped model call.
type LLMRequest struct {
	Prompt   string
	Messages any
}

// LLMResult is the output of a wrapped model call. OutputText wins over
// Text when both are set. Raw carries the provider response untouched.
type LLMResult struct {
	OutputText string
	Text       string
	Usage      *DeclaredUsage
	Raw        any
}

func (r *LLMResult) text() string {
	if r == nil {
		return ""
	}
	if r.OutputText != "" {
		return r.OutputText
	}
	return r.Text
}

// DeclaredUsage holds token counts reported by a provider. Nil, NaN and
// infinite fields are replaced by estimates.
//
// When decoded from JSON the following aliases are accepted, first match
// wins: inputTokens, promptTokens, input, prompt_tokens; outputTokens,
// completionTokens, output, completion_tokens; totalTokens, total,
// total_tokens.
type DeclaredUsage struct {
	InputTokens  *float64 `json:"inputTokens,omitempty"`
	OutputTokens *float64 `json:"outputTokens,omitempty"`
	TotalTokens  *float64 `json:"totalTokens,omitempty"`
}

// Declared returns usage with the given input and output counts.
func Declared(input, output int) *DeclaredUsage {
	in, out := float64(input), float64(output)
	return &DeclaredUsage{InputTokens: &in, OutputTokens: &out}
}

var (
	inputAliases  = []string{"inputTokens", "promptTokens", "input", "prompt_tokens"}
	outputAliases = []string{"outputTokens", "completionTokens", "output", "completion_tokens"}
	totalAliases  = []string{"totalTokens", "total", "total_tokens"}
)

// UnmarshalJSON decodes usage accepting the documented aliases.
func (u *DeclaredUsage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.InputTokens = firstNumber(raw, inputAliases)
	u.OutputTokens = firstNumber(raw, outputAliases)
	u.TotalTokens = firstNumber(raw, totalAliases)
	return nil
}

func firstNumber(raw map[string]json.RawMessage, keys []string) *float64 {
	for _, k := range keys {
		msg, ok := raw[k]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err == nil {
			return &v
		}
	}
	return nil
}

// LLMFunc is a model call.
type LLMFunc func(ctx context.Context, req LLMRequest) (*LLMResult, error)

type llmOptions struct {
	name           string
	capturePrompts *bool
	captureOutputs *bool
	meta           map[string]any
}

// LLMOption customizes WrapLLM.
type LLMOption func(*llmOptions)

// WithName sets the span name. Default: "llm.call".
func WithName(name string) LLMOption {
	return func(o *llmOptions) { o.name = name }
}

// WithCapture overrides the Lens capture settings for this call site.
// Request messages follow the prompts setting.
func WithCapture(prompts, outputs bool) LLMOption {
	return func(o *llmOptions) {
		o.capturePrompts = &prompts
		o.captureOutputs = &outputs
	}
}

// WithMeta attaches meta to every span of this call site.
func WithMeta(meta map[string]any) LLMOption {
	return func(o *llmOptions) { o.meta = maps.Clone(meta) }
}

// WrapLLM instruments fn. Each call opens an llm span for model, records
// the possibly redacted prompt and output, derives usage, cost and safety
// from the raw texts, and ends the span. fn's result and error are
// returned unchanged.
func (l *Lens) WrapLLM(model string, fn LLMFunc, opts ...LLMOption) LLMFunc {
	o := llmOptions{name: "llm.call"}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, req LLMRequest) (*LLMResult, error) {
		capturePrompts := l.ethics.CapturePrompts
		if o.capturePrompts != nil {
			capturePrompts = *o.capturePrompts
		}
		captureOutputs := l.ethics.CaptureOutputs
		if o.captureOutputs != nil {
			captureOutputs = *o.captureOutputs
		}

		h, err := l.StartSpan(ctx, SpanStart{
			Kind:  KindLLM,
			Name:  o.name,
			Model: model,
			Input: &SpanInput{
				Prompt:   l.recorded(req.Prompt, capturePrompts),
				Messages: l.recordedMessages(req.Messages, capturePrompts),
			},
			Meta: o.meta,
		})
		if err != nil {
			return nil, err
		}

		res, callErr := fn(h.Context(ctx), req)
		if callErr != nil {
			h.End(SpanEnd{Err: callErr})
			return res, callErr
		}

		rawOutput := res.text()
		var declared *DeclaredUsage
		if res != nil {
			declared = res.Usage
		}
		usage := normalizeUsage(declared, req.Prompt, rawOutput, l.tokenEstimator())
		cost := pricing.Compute(model, usage.InputTokens, usage.OutputTokens, l.pricing)
		safety := pii.Analyze(req.Prompt, rawOutput, pii.AnalyzeOptions{
			Evidence: l.ethics.Evidence.Enabled,
			EvidenceOptions: pii.EvidenceOptions{
				Mode:            l.ethics.RedactionMode,
				IncludeRawMatch: l.ethics.Evidence.IncludeRawMatch,
				ContextChars:    l.ethics.Evidence.ContextChars,
			},
		})

		h.End(SpanEnd{
			Output: &SpanOutput{Text: l.recorded(rawOutput, captureOutputs)},
			Usage:  &usage,
			Cost:   &cost,
			Safety: &safety,
		})
		return res, nil
	}
}

// recorded returns the copy of text kept on a span.
func (l *Lens) recorded(text string, capture bool) string {
	if !capture {
		return ""
	}
	if l.ethics.RedactPII && text != "" {
		mode := l.ethics.RedactionMode
		if mode == "" {
			mode = pii.ModeMask
		}
		return pii.Redact(text, mode)
	}
	return text
}

// recordedMessages returns the copy of messages kept on a span: nothing
// when prompts are not captured, otherwise a JSON-shaped copy whose strings
// are redacted like the prompt. Messages that do not marshal are dropped.
func (l *Lens) recordedMessages(messages any, capture bool) any {
	if messages == nil || !capture {
		return nil
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return l.redactStrings(v)
}

func (l *Lens) redactStrings(v any) any {
	switch x := v.(type) {
	case string:
		return l.recorded(x, true)
	case []any:
		for i := range x {
			x[i] = l.redactStrings(x[i])
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = l.redactStrings(e)
		}
		return x
	}
	return v
}

// normalizeUsage prefers declared counts and estimates the rest from raw
// text. Total defaults to input+output. All counts are clamped to
// [0, math.MaxInt].
func normalizeUsage(declared *DeclaredUsage, prompt, output string, est tokens.Estimator) Usage {
	var in, out, total *float64
	if declared != nil {
		in, out, total = finite(declared.InputTokens), finite(declared.OutputTokens), finite(declared.TotalTokens)
	}

	input := float64(est.Estimate(prompt))
	if in != nil {
		input = *in
	}
	outputTokens := float64(est.Estimate(output))
	if out != nil {
		outputTokens = *out
	}
	sum := input + outputTokens
	if total != nil {
		sum = *total
	}

	return Usage{
		InputTokens:  clampCount(input),
		OutputTokens: clampCount(outputTokens),
		TotalTokens:  clampCount(sum),
	}
}

// clampCount converts a token count to int within [0, math.MaxInt].
func clampCount(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxInt:
		return math.MaxInt
	}
	return int(v)
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
