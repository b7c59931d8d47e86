// Package openaicompat is a chat client for OpenAI-compatible
// /v1/chat/completions endpoints. Every call is recorded as an llm span
// named after the model with the "openai-compatible:" prefix.
package openaicompat

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

// DefaultTimeout bounds a call when no client is supplied.
const DefaultTimeout = 60 * time.Second

// ModelPrefix prefixes the model recorded on spans.
const ModelPrefix = "openai-compatible:"

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.openai.com. Required.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Headers are added to every request after Authorization.
	Headers map[string]string

	// HTTPClient sends requests. Default: a client with DefaultTimeout.
	HTTPClient *http.Client
}

// Client calls a chat completions endpoint.
type Client struct {
	lens    provider.Wrapper
	baseURL string
	headers map[string]string
	model   string
	http    *http.Client
}

// ChatRequest is one completion call. Nil tuning fields are omitted.
type ChatRequest struct {
	Model       string
	Messages    []provider.Message
	Temperature *float64
	MaxTokens   *int
}

// Usage is the token accounting reported by the endpoint.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the decoded completion. Raw holds the full document.
type ChatResponse struct {
	ID      string
	Model   string
	Content string
	Usage   *Usage
	Raw     map[string]any
}

type wireRequest struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
}

// New creates a Client recording through l.
func New(l provider.Wrapper, opts Options) (*Client, error) {
	if l == nil {
		return nil, provider.ErrMissingWrapper
	}
	if opts.BaseURL == "" {
		return nil, provider.ErrMissingBaseURL
	}
	headers := map[string]string{}
	if opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + opts.APIKey
	}
	maps.Copy(headers, opts.Headers)

	c := &Client{
		lens:    l,
		baseURL: provider.TrimBaseURL(opts.BaseURL),
		headers: headers,
		model:   opts.DefaultModel,
		http:    opts.HTTPClient,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	return c, nil
}

// Chat sends req and returns the completion. Transport failures and
// non-2xx answers fail the span and are returned unchanged.
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
		data, err := provider.PostJSON(ctx, c.http, c.baseURL+"/v1/chat/completions", c.headers, wireRequest{
			Model:       model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		resp, err = decode(data)
		if err != nil {
			return nil, err
		}
		result := &lens.LLMResult{OutputText: resp.Content, Raw: resp.Raw}
		if u := resp.Usage; u != nil {
			total := float64(u.TotalTokens)
			result.Usage = lens.Declared(u.PromptTokens, u.CompletionTokens)
			result.Usage.TotalTokens = &total
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func decode(data []byte) (*ChatResponse, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("openaicompat: decode response: %w", err)
	}
	doc := gjson.ParseBytes(data)
	resp := &ChatResponse{
		ID:      doc.Get("id").String(),
		Model:   doc.Get("model").String(),
		Content: doc.Get("choices.0.message.content").String(),
		Raw:     raw,
	}
	if u := doc.Get("usage"); u.IsObject() {
		resp.Usage = &Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}
	return resp, nil
}
