package plugins

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/tylolens/lens"
)

func newLens(t *testing.T, plugins ...lens.Plugin) *lens.Lens {
	t.Helper()
	cfg := lens.DefaultConfig(lens.AppInfo{Name: "plugins-test", Environment: "test"})
	cfg.Plugins = plugins
	l, err := lens.New(cfg)
	if err != nil {
		t.Fatalf("lens.New: %v", err)
	}
	t.Cleanup(l.Dispose)
	return l
}

// recorder is an exporter that keeps what it receives and signals each
// export on got.
type recorder struct {
	mu     sync.Mutex
	traces []*lens.Trace
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 16)}
}

func (r *recorder) Name() string { return "rec" }

func (r *recorder) Export(_ context.Context, t *lens.Trace) error {
	r.mu.Lock()
	r.traces = append(r.traces, t)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.traces)
}

func (r *recorder) last() *lens.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traces[len(r.traces)-1]
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func endSpan(t *testing.T, l *lens.Lens, name string) {
	t.Helper()
	h, err := l.StartSpan(context.Background(), lens.SpanStart{Kind: lens.KindTool, Name: name})
	if err != nil {
		t.Fatalf("StartSpan: %v", err)
	}
	h.End(lens.SpanEnd{})
}

type stubTransport struct {
	status int
}

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Header:     http.Header{},
		Body:       http.NoBody,
		Request:    r,
	}, nil
}
