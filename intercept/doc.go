// Package intercept instruments outbound calls with lens spans.
//
// Transport decorates an http.RoundTripper: each traced request becomes an
// http span, parented through the request context. Streaming responses
// (text/event-stream) are tapped as the caller reads them, so the span
// output grows with every decoded delta while the caller still receives
// every byte unchanged.
//
// Install swaps the Transport into an existing *http.Client for code that
// cannot be handed a new client, and returns a function that restores the
// previous transport.
//
// MCPClient and WrapRequester do the same for Model Context Protocol
// calls, producing mcp spans named "<client>.request".
package intercept
