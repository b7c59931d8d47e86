// Package ollama is a chat client for a local Ollama server. Every call is
// recorded as an llm span named after the model with the "ollama:"
// prefix.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/provider"
)

// DefaultBaseURL is the local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// DefaultTimeout bounds a call when no client is supplied. Local models
// can be slow to load.
const DefaultTimeout = 5 * time.Minute

// ModelPrefix prefixes the model recorded on spans.
const ModelPrefix = "ollama:"

// Options configures a Client.
type Options struct {
	// BaseURL is the server root. Default: DefaultBaseURL.
	BaseURL string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Headers are added to every request.
	Headers map[string]string

	// HTTPClient sends requests. Default: a client with DefaultTimeout.
	HTTPClient *http.Client
}

// Client calls /api/chat without streaming.
type Client struct {
	lens    provider.Wrapper
	baseURL string
	headers map[string]string
	model   string
	http    *http.Client
}

// ChatRequest is one chat call.
type ChatRequest struct {
	Model    string
	Messages []provider.Message
}

// ChatResponse is the decoded answer. Raw holds the full document.
type ChatResponse struct {
	Model           string
	Content         string
	PromptEvalCount int
	EvalCount       int
	Raw             map[string]any
}

type wireRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Stream   bool               `json:"stream"`
}

// New creates a Client recording through l.
func New(l provider.Wrapper, opts Options) (*Client, error) {
	if l == nil {
		return nil, provider.ErrMissingWrapper
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	c := &Client{
		lens:    l,
		baseURL: provider.TrimBaseURL(opts.BaseURL),
		headers: maps.Clone(opts.Headers),
		model:   opts.DefaultModel,
		http:    opts.HTTPClient,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	return c, nil
}

// Chat sends req and returns the answer. Usage is always declared: the
// prompt and completion counts reported by the server, zero when absent.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, provider.ErrMissingModel
	}

	var resp *ChatResponse
	_, err := provider.Run(ctx, c.lens, ModelPrefix+model, req.Messages, func(ctx context.Context, _ lens.LLMRequest) (*lens.LLMResult, error) {
		data, err := provider.PostJSON(ctx, c.http, c.baseURL+"/api/chat", c.headers, wireRequest{
			Model:    model,
			Messages: req.Messages,
		})
		if err != nil {
			return nil, err
		}
		resp, err = decode(data)
		if err != nil {
			return nil, err
		}
		total := float64(resp.PromptEvalCount + resp.EvalCount)
		usage := lens.Declared(resp.PromptEvalCount, resp.EvalCount)
		usage.TotalTokens = &total
		return &lens.LLMResult{OutputText: resp.Content, Usage: usage, Raw: resp.Raw}, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func decode(data []byte) (*ChatResponse, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	doc := gjson.ParseBytes(data)
	return &ChatResponse{
		Model:           doc.Get("model").String(),
		Content:         doc.Get("message.content").String(),
		PromptEvalCount: int(doc.Get("prompt_eval_count").Int()),
		EvalCount:       int(doc.Get("eval_count").Int()),
		Raw:             raw,
	}, nil
}
