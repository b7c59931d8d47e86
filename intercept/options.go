package intercept

// Default SSE capture ceilings.
const (
	DefaultSSEMaxBytes  = 256_000
	DefaultSSEMaxEvents = 2000
)

type options struct {
	shouldTrace         func(url string) bool
	spanName            string
	captureBody         bool
	captureResponseBody bool
	headers             bool
	sse                 bool
	sseMaxBytes         int
	sseMaxEvents        int
}

func defaultOptions(spanName string) options {
	return options{
		spanName:     spanName,
		sseMaxBytes:  DefaultSSEMaxBytes,
		sseMaxEvents: DefaultSSEMaxEvents,
	}
}

// Option configures a Transport.
type Option func(*options)

// WithShouldTrace limits tracing to requests whose URL satisfies fn.
// Other requests pass through untouched.
func WithShouldTrace(fn func(url string) bool) Option {
	return func(o *options) { o.shouldTrace = fn }
}

// WithSpanName overrides the span name.
func WithSpanName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.spanName = name
		}
	}
}

// WithCaptureBody records request bodies that can be replayed
// (http.Request.GetBody is set), which covers bodies built from bytes and
// strings.
func WithCaptureBody() Option {
	return func(o *options) { o.captureBody = true }
}

// WithCaptureResponseBody records non-streaming response bodies. The body
// is read fully before RoundTrip returns and handed to the caller from a
// replay buffer.
func WithCaptureResponseBody() Option {
	return func(o *options) { o.captureResponseBody = true }
}

// WithHeaders records request and response headers. Credential headers
// are always masked.
func WithHeaders() Option {
	return func(o *options) { o.headers = true }
}

// WithSSE taps text/event-stream responses, capturing at most maxBytes of
// decoded delta text and maxEvents events. Non-positive values select the
// defaults.
func WithSSE(maxBytes, maxEvents int) Option {
	return func(o *options) {
		o.sse = true
		if maxBytes > 0 {
			o.sseMaxBytes = maxBytes
		}
		if maxEvents > 0 {
			o.sseMaxEvents = maxEvents
		}
	}
}
