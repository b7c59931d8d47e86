package intercept

import (
	"io"
	"net/http"
	"testing"

	"github.com/jonwraymond/tylolens/lens"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newLens(t *testing.T) *lens.Lens {
	t.Helper()
	l, err := lens.New(lens.DefaultConfig(lens.AppInfo{Name: "intercept-test"}))
	if err != nil {
		t.Fatalf("lens.New: %v", err)
	}
	t.Cleanup(l.Dispose)
	return l
}

func spans(t *testing.T, l *lens.Lens) []*lens.Span {
	t.Helper()
	tr, err := l.Snapshot()
	if err != nil {
		return nil
	}
	return tr.Spans
}

func onlySpan(t *testing.T, l *lens.Lens) *lens.Span {
	t.Helper()
	got := spans(t, l)
	if len(got) != 1 {
		t.Fatalf("spans = %d, want 1", len(got))
	}
	return got[0]
}

// streamBase answers every request with an event stream read from body.
func streamBase(body func() io.Reader) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"text/event-stream; charset=utf-8"}},
			Body:       io.NopCloser(body()),
			Request:    r,
		}, nil
	})
}
