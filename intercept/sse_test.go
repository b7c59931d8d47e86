package intercept

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jonwraymond/tylolens/lens"
)

const stream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\r\n\r\n" +
	": keep-alive\n\n" +
	"event: content_block_delta\ndata: {\"delta\":{\"text\":\" world\"}}\n\n" +
	"data: not json\n\n" +
	"data: [DONE]\n\n"

func readThrough(t *testing.T, tr http.RoundTripper) (string, error) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, "https://llm.local/v1/chat/completions", nil)
	res, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	return string(body), err
}

func TestSSE_AccumulatesDeltas(t *testing.T) {
	readers := map[string]func() io.Reader{
		"whole":    func() io.Reader { return strings.NewReader(stream) },
		"one byte": func() io.Reader { return iotest.OneByteReader(strings.NewReader(stream)) },
	}
	for name, body := range readers {
		t.Run(name, func(t *testing.T) {
			l := newLens(t)
			updates := 0
			l.On(lens.EventSpanUpdate, func(lens.Event) { updates++ })

			got, err := readThrough(t, NewTransport(l, streamBase(body), WithSSE(0, 0)))
			if err != nil {
				t.Fatal(err)
			}
			if got != stream {
				t.Error("passthrough bytes altered")
			}

			s := onlySpan(t, l)
			if s.Output.Text != "Hello worldnot json" {
				t.Errorf("text = %q", s.Output.Text)
			}
			if s.Output.Response.Status != http.StatusOK {
				t.Errorf("status lost: %+v", s.Output.Response)
			}
			if !s.Ended() || s.Meta["sseTruncated"] != nil || s.Meta["sseError"] != nil {
				t.Errorf("span = ended %v meta %v", s.Ended(), s.Meta)
			}
			// one status update plus four deltas
			if updates != 5 {
				t.Errorf("updates = %d, want 5", updates)
			}
		})
	}
}

func TestSSE_ByteCeilingTruncates(t *testing.T) {
	readers := map[string]func() io.Reader{
		"whole":    func() io.Reader { return strings.NewReader(stream) },
		"one byte": func() io.Reader { return iotest.OneByteReader(strings.NewReader(stream)) },
	}
	for name, body := range readers {
		t.Run(name, func(t *testing.T) {
			l := newLens(t)
			got, err := readThrough(t, NewTransport(l, streamBase(body), WithSSE(5, 0)))
			if err != nil {
				t.Fatal(err)
			}
			if got != stream {
				t.Error("truncation altered the passthrough stream")
			}
			s := onlySpan(t, l)
			if s.Output.Text != "Hello" || s.Meta["sseTruncated"] != true {
				t.Errorf("text %q meta %v", s.Output.Text, s.Meta)
			}
		})
	}
}

func TestSSE_ByteCeilingCountsDeltasNotLines(t *testing.T) {
	const small = "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"
	readers := map[string]func() io.Reader{
		"whole":    func() io.Reader { return strings.NewReader(small) },
		"one byte": func() io.Reader { return iotest.OneByteReader(strings.NewReader(small)) },
	}
	for name, body := range readers {
		t.Run(name, func(t *testing.T) {
			l := newLens(t)
			if _, err := readThrough(t, NewTransport(l, streamBase(body), WithSSE(10, 0))); err != nil {
				t.Fatal(err)
			}
			s := onlySpan(t, l)
			if s.Output.Text != "hi" || s.Meta["sseTruncated"] != nil {
				t.Errorf("text %q meta %v", s.Output.Text, s.Meta)
			}
		})
	}
}

func TestSSE_EventCeilingTruncates(t *testing.T) {
	l := newLens(t)
	body := func() io.Reader { return strings.NewReader(stream) }
	if _, err := readThrough(t, NewTransport(l, streamBase(body), WithSSE(0, 2))); err != nil {
		t.Fatal(err)
	}
	s := onlySpan(t, l)
	if s.Output.Text != "Hello" || s.Meta["sseTruncated"] != true {
		t.Errorf("text %q meta %v", s.Output.Text, s.Meta)
	}
}

func TestSSE_ReadErrorEndsSpan(t *testing.T) {
	l := newLens(t)
	reset := errors.New("connection reset by peer")
	body := func() io.Reader {
		return io.MultiReader(
			strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"),
			iotest.ErrReader(reset),
		)
	}
	_, err := readThrough(t, NewTransport(l, streamBase(body), WithSSE(0, 0)))
	if !errors.Is(err, reset) {
		t.Fatalf("caller error = %v", err)
	}
	s := onlySpan(t, l)
	if !s.Ended() || s.Output.Text != "Hi" || s.Meta["sseError"] != reset.Error() {
		t.Errorf("span = text %q meta %v", s.Output.Text, s.Meta)
	}
}

func TestSSE_CloseEndsSpan(t *testing.T) {
	l := newLens(t)
	body := func() io.Reader { return iotest.OneByteReader(strings.NewReader(stream)) }
	tr := NewTransport(l, streamBase(body), WithSSE(0, 0))

	req, _ := http.NewRequest(http.MethodGet, "https://llm.local/stream", nil)
	res, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	if onlySpan(t, l).Ended() {
		t.Fatal("streaming span ended before the body was read")
	}
	buf := make([]byte, 1)
	for i := 0; i < 60; i++ {
		if _, err := res.Body.Read(buf); err != nil {
			t.Fatal(err)
		}
	}
	_ = res.Body.Close()
	_ = res.Body.Close()

	s := onlySpan(t, l)
	if !s.Ended() || s.Output.Text != "Hel" {
		t.Errorf("span = ended %v text %q", s.Ended(), s.Output.Text)
	}
}

func TestSSE_NotTappedWithoutOption(t *testing.T) {
	l := newLens(t)
	body := func() io.Reader { return strings.NewReader(stream) }
	tr := NewTransport(l, streamBase(body))

	req, _ := http.NewRequest(http.MethodGet, "https://llm.local/stream", nil)
	res, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if _, ok := res.Body.(*sseTap); ok {
		t.Error("body tapped without WithSSE")
	}
	if !onlySpan(t, l).Ended() {
		t.Error("non-tapped response should end at RoundTrip")
	}
}

func TestSSE_LiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"Str", "eam", "ed"} {
			_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\""+part+"\"}}]}\n\n")
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	l := newLens(t)
	client := &http.Client{Transport: NewTransport(l, nil, WithSSE(0, 0))}
	res, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()

	if s := onlySpan(t, l); s.Output.Text != "Streamed" || !s.Ended() {
		t.Errorf("span = text %q ended %v", s.Output.Text, s.Ended())
	}
}

func TestExtractDelta(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"choices":[{"delta":{"content":"a"}}]}`, "a"},
		{`{"choices":[{"text":"b"}]}`, "b"},
		{`{"choices":[{"delta":{"content":""},"text":"c"}]}`, "c"},
		{`{"delta":{"text":"d"}}`, "d"},
		{`{"content_block_delta":{"delta":{"text":"e"}}}`, "e"},
		{`{"choices":[{"delta":{"role":"assistant"}}]}`, ""},
		{`{"choices":[{"delta":{"content":5}}]}`, ""},
		{"  plain words  ", "plain words"},
		{"[DONE]", ""},
		{"   ", ""},
		{`{"broken":`, `{"broken":`},
	}
	for _, tt := range tests {
		if got := ExtractDelta(tt.payload); got != tt.want {
			t.Errorf("ExtractDelta(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
