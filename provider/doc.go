// Package provider holds thin model clients whose calls are recorded as
// llm spans through lens.Lens.WrapLLM.
//
// Subpackages:
//   - openaicompat: any /v1/chat/completions endpoint (OpenAI, gateways)
//   - ollama: the Ollama /api/chat endpoint
package provider

import (
	"context"

	"github.com/jonwraymond/tylolens/lens"
)

// Wrapper wraps model calls into llm spans. *lens.Lens implements it.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: the wrapped function's error is returned unchanged.
type Wrapper interface {
	WrapLLM(model string, fn lens.LLMFunc, opts ...lens.LLMOption) lens.LLMFunc
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt renders messages as "role: content" lines, the form recorded as
// the span prompt.
func Prompt(messages []Message) string {
	var n int
	for _, m := range messages {
		n += len(m.Role) + len(m.Content) + 3
	}
	b := make([]byte, 0, n)
	for i, m := range messages {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, m.Role...)
		b = append(b, ": "...)
		b = append(b, m.Content...)
	}
	return string(b)
}

// Run invokes fn through w under model and returns fn's result.
func Run(ctx context.Context, w Wrapper, model string, messages []Message, fn lens.LLMFunc) (*lens.LLMResult, error) {
	return w.WrapLLM(model, fn)(ctx, lens.LLMRequest{Prompt: Prompt(messages), Messages: messages})
}

var _ Wrapper = (*lens.Lens)(nil)
