package intercept

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/jonwraymond/tylolens/lens"
)

// Transport is an http.RoundTripper that records each traced request as
// an http span.
//
// Contract:
// - Concurrency: safe for concurrent use when the base transport is.
// - Errors: base transport errors are returned unchanged after the span
// ends with them; tracing never fails a request.
// - Ownership: the request is not modified. The response is returned as
// is, except that its Body may be replaced by an equivalent reader.
type Transport struct {
	lens lens.SpanStarter
	base http.RoundTripper
	opts options
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport decorates base, or http.DefaultTransport when base is nil.
func NewTransport(l lens.SpanStarter, base http.RoundTripper, opts ...Option) *Transport {
	return newTransport(l, base, "http.client", opts)
}

func newTransport(l lens.SpanStarter, base http.RoundTripper, spanName string, opts []Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	o := defaultOptions(spanName)
	for _, opt := range opts {
		opt(&o)
	}
	return &Transport{lens: l, base: base, opts: o}
}

// Base returns the decorated transport.
func (t *Transport) Base() http.RoundTripper { return t.base }

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	if t.opts.shouldTrace != nil && !t.opts.shouldTrace(url) {
		return t.base.RoundTrip(req)
	}

	h, err := t.lens.StartSpan(req.Context(), lens.SpanStart{
		Kind:  lens.KindHTTP,
		Name:  t.opts.spanName,
		Input: &lens.SpanInput{Request: t.describe(req)},
	})
	if err != nil {
		return t.base.RoundTrip(req)
	}

	res, err := t.base.RoundTrip(req)
	if err != nil {
		h.Fail(err)
		return nil, err
	}

	h.Update(lens.SpanUpdate{Output: &lens.OutputUpdate{Response: &lens.HTTPResponse{
		Status:  res.StatusCode,
		Headers: t.headers(res.Header),
	}}})

	if t.opts.sse && res.Body != nil && isEventStream(res.Header) {
		res.Body = newSSETap(res.Body, h, t.opts.sseMaxBytes, t.opts.sseMaxEvents)
		return res, nil
	}

	out := &lens.HTTPResponse{Status: res.StatusCode, Headers: t.headers(res.Header)}
	if t.opts.captureResponseBody && res.Body != nil {
		body, readErr := io.ReadAll(res.Body)
		_ = res.Body.Close()
		res.Body = replayBody(body, readErr)
		if readErr == nil {
			out.Body = string(body)
		}
	}
	h.End(lens.SpanEnd{Output: &lens.SpanOutput{Response: out}})
	return res, nil
}

func (t *Transport) describe(req *http.Request) *lens.HTTPRequest {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	in := &lens.HTTPRequest{
		URL:     req.URL.String(),
		Method:  method,
		Headers: t.headers(req.Header),
	}
	if t.opts.captureBody && req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		if rc, err := req.GetBody(); err == nil {
			body, err := io.ReadAll(rc)
			_ = rc.Close()
			if err == nil {
				in.Body = string(body)
			}
		}
	}
	return in
}

var sensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
	"X-Api-Key",
	"Api-Key",
}

const maskedHeader = "[REDACTED]"

// headers flattens h when header capture is on, masking credentials.
func (t *Transport) headers(h http.Header) map[string]string {
	if !t.opts.headers || len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if slices.Contains(sensitiveHeaders, http.CanonicalHeaderKey(k)) {
			out[k] = maskedHeader
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func isEventStream(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(strings.ToLower(ct), "text/event-stream")
	}
	return mt == "text/event-stream"
}

// replayBody hands back body and then err, if any.
func replayBody(body []byte, err error) io.ReadCloser {
	if err == nil {
		return io.NopCloser(bytes.NewReader(body))
	}
	return io.NopCloser(io.MultiReader(bytes.NewReader(body), errReader{err}))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
