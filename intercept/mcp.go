package intercept

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jonwraymond/tylolens/lens"
)

// MCP method names recorded in span meta.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"
)

// Session is the subset of an mcp-go client that MCPClient instruments.
// *client.Client satisfies it.
type Session interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	Ping(ctx context.Context) error
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	Close() error
}

var _ Session = (*client.Client)(nil)

type mcpOptions struct {
	clientName    string
	captureParams bool
}

// MCPOption configures MCPClient and WrapRequester.
type MCPOption func(*mcpOptions)

// WithClientName sets the span name prefix. Default: "mcp".
func WithClientName(name string) MCPOption {
	return func(o *mcpOptions) {
		if name != "" {
			o.clientName = name
		}
	}
}

// WithCaptureParams records request params as the span input messages.
func WithCaptureParams() MCPOption {
	return func(o *mcpOptions) { o.captureParams = true }
}

type mcpTracer struct {
	lens lens.SpanStarter
	opts mcpOptions
}

func newMCPTracer(l lens.SpanStarter, opts []MCPOption) mcpTracer {
	o := mcpOptions{clientName: "mcp"}
	for _, opt := range opts {
		opt(&o)
	}
	return mcpTracer{lens: l, opts: o}
}

// do runs call inside an mcp span for method. The span ends with call's
// error, which is returned unchanged.
func (t mcpTracer) do(ctx context.Context, method string, params any, meta map[string]any, call func(ctx context.Context) error) error {
	return t.doMeta(ctx, method, params, meta, func(ctx context.Context) (map[string]any, error) {
		return nil, call(ctx)
	})
}

// doMeta is do for calls that add meta to the span on success.
func (t mcpTracer) doMeta(ctx context.Context, method string, params any, meta map[string]any, call func(ctx context.Context) (map[string]any, error)) error {
	start := lens.SpanStart{
		Kind: lens.KindMCP,
		Name: t.opts.clientName + ".request",
		Meta: map[string]any{"method": method},
	}
	for k, v := range meta {
		start.Meta[k] = v
	}
	if t.opts.captureParams && params != nil {
		start.Input = &lens.SpanInput{Messages: params}
	}

	h, err := t.lens.StartSpan(ctx, start)
	if err != nil {
		_, err = call(ctx)
		return err
	}
	endMeta, err := call(h.Context(ctx))
	if err != nil {
		h.Fail(err)
		return err
	}
	h.End(lens.SpanEnd{Meta: endMeta})
	return nil
}

// MCPClient instruments every request of a Session.
//
// Contract:
// - Concurrency: safe for concurrent use when the Session is.
// - Errors: Session errors are returned unchanged after the span ends
// with them.
type MCPClient struct {
	session Session
	tracer  mcpTracer
}

var _ Session = (*MCPClient)(nil)

// NewMCPClient wraps session.
func NewMCPClient(l lens.SpanStarter, session Session, opts ...MCPOption) *MCPClient {
	return &MCPClient{session: session, tracer: newMCPTracer(l, opts)}
}

// Unwrap returns the wrapped session.
func (c *MCPClient) Unwrap() Session { return c.session }

func (c *MCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (res *mcp.InitializeResult, err error) {
	err = c.tracer.do(ctx, MethodInitialize, req.Params, nil, func(ctx context.Context) error {
		res, err = c.session.Initialize(ctx, req)
		return err
	})
	return res, err
}

func (c *MCPClient) Ping(ctx context.Context) error {
	return c.tracer.do(ctx, MethodPing, nil, nil, c.session.Ping)
}

func (c *MCPClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (res *mcp.ListToolsResult, err error) {
	err = c.tracer.do(ctx, MethodToolsList, req.Params, nil, func(ctx context.Context) error {
		res, err = c.session.ListTools(ctx, req)
		return err
	})
	return res, err
}

// CallTool records the tool name in meta.tool, and meta.isError when the
// tool reports a failure result.
func (c *MCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
	meta := map[string]any{"tool": req.Params.Name}
	err = c.tracer.doMeta(ctx, MethodToolsCall, req.Params, meta, func(ctx context.Context) (map[string]any, error) {
		res, err = c.session.CallTool(ctx, req)
		if err == nil && res != nil && res.IsError {
			return map[string]any{"isError": true}, nil
		}
		return nil, err
	})
	return res, err
}

func (c *MCPClient) ListResources(ctx context.Context, req mcp.ListResourcesRequest) (res *mcp.ListResourcesResult, err error) {
	err = c.tracer.do(ctx, MethodResourcesList, req.Params, nil, func(ctx context.Context) error {
		res, err = c.session.ListResources(ctx, req)
		return err
	})
	return res, err
}

func (c *MCPClient) ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (res *mcp.ReadResourceResult, err error) {
	meta := map[string]any{"uri": req.Params.URI}
	err = c.tracer.do(ctx, MethodResourcesRead, req.Params, meta, func(ctx context.Context) error {
		res, err = c.session.ReadResource(ctx, req)
		return err
	})
	return res, err
}

func (c *MCPClient) ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (res *mcp.ListPromptsResult, err error) {
	err = c.tracer.do(ctx, MethodPromptsList, req.Params, nil, func(ctx context.Context) error {
		res, err = c.session.ListPrompts(ctx, req)
		return err
	})
	return res, err
}

func (c *MCPClient) GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (res *mcp.GetPromptResult, err error) {
	meta := map[string]any{"prompt": req.Params.Name}
	err = c.tracer.do(ctx, MethodPromptsGet, req.Params, meta, func(ctx context.Context) error {
		res, err = c.session.GetPrompt(ctx, req)
		return err
	})
	return res, err
}

// Close closes the session. It is not traced.
func (c *MCPClient) Close() error { return c.session.Close() }

// Requester is a generic JSON-RPC style MCP caller.
type Requester interface {
	Request(ctx context.Context, method string, params any) (any, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, method string, params any) (any, error)

// Request calls f.
func (f RequesterFunc) Request(ctx context.Context, method string, params any) (any, error) {
	return f(ctx, method, params)
}

type tracedRequester struct {
	next   Requester
	tracer mcpTracer
}

// WrapRequester instruments every Request of r.
func WrapRequester(l lens.SpanStarter, r Requester, opts ...MCPOption) Requester {
	return &tracedRequester{next: r, tracer: newMCPTracer(l, opts)}
}

func (r *tracedRequester) Request(ctx context.Context, method string, params any) (res any, err error) {
	err = r.tracer.do(ctx, method, params, nil, func(ctx context.Context) error {
		res, err = r.next.Request(ctx, method, params)
		return err
	})
	return res, err
}
