package intercept

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/tylolens/lens"
)

// deltaPaths are the streamed-delta shapes probed in order: OpenAI chat,
// OpenAI completions, Anthropic deltas and wrapped content block deltas.
// The first non-empty string wins.
var deltaPaths = []string{
	"choices.0.delta.content",
	"choices.0.text",
	"delta.text",
	"content_block_delta.delta.text",
}

const doneMarker = "[DONE]"

// maxLineBytes bounds a buffered line that has not seen its newline yet.
const maxLineBytes = 1 << 20

// ExtractDelta returns the incremental text carried by one SSE event
// payload. JSON payloads are probed for known delta shapes; anything else
// is used verbatim after trimming. The [DONE] marker yields "".
func ExtractDelta(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || trimmed == doneMarker {
		return ""
	}
	if !gjson.Valid(trimmed) {
		return trimmed
	}
	for _, path := range deltaPaths {
		if r := gjson.Get(trimmed, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// sseTap passes a response body through unchanged while decoding the
// bytes it carries into span updates.
//
// Bytes are buffered until a full line is available; data lines collect
// into an event that a blank line dispatches. Once the delta byte or
// event ceiling is exceeded the tap stops decoding and marks the span
// truncated, but reads keep flowing to the caller. The span ends at EOF,
// on a read error or on Close, whichever comes first.
type sseTap struct {
	body      io.ReadCloser
	span      *lens.SpanHandle
	maxBytes  int
	maxEvents int

	mu        sync.Mutex
	pending   []byte
	data      []string
	events    int
	captured  int
	text      strings.Builder
	truncated bool
	done      bool
}

func newSSETap(body io.ReadCloser, span *lens.SpanHandle, maxBytes, maxEvents int) *sseTap {
	return &sseTap{body: body, span: span, maxBytes: maxBytes, maxEvents: maxEvents}
}

func (t *sseTap) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)

	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.feed(p[:n])
	}
	if err != nil {
		t.finish(err)
	}
	return n, err
}

func (t *sseTap) Close() error {
	err := t.body.Close()

	t.mu.Lock()
	t.finish(nil)
	t.mu.Unlock()
	return err
}

func (t *sseTap) feed(chunk []byte) {
	if t.done || t.truncated {
		return
	}
	t.pending = append(t.pending, chunk...)
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(t.pending[:i]), "\r")
		t.pending = t.pending[i+1:]
		t.line(line)
		if t.truncated {
			t.pending = nil
			return
		}
	}
	if len(t.pending) > maxLineBytes {
		t.truncated = true
		t.pending = nil
	}
}

func (t *sseTap) line(line string) {
	if line != "" {
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			t.data = append(t.data, strings.TrimLeftFunc(payload, unicode.IsSpace))
		}
		return
	}
	if len(t.data) == 0 {
		return
	}
	payload := strings.Join(t.data, "\n")
	t.data = t.data[:0]

	t.events++
	if t.events > t.maxEvents {
		t.truncated = true
		return
	}

	delta := ExtractDelta(payload)
	if delta == "" {
		return
	}
	if t.captured+len(delta) > t.maxBytes {
		t.truncated = true
		return
	}
	t.captured += len(delta)
	t.text.WriteString(delta)
	text := t.text.String()
	t.span.Update(lens.SpanUpdate{Output: &lens.OutputUpdate{Text: &text}})
}

func (t *sseTap) finish(err error) {
	if t.done {
		return
	}
	t.done = true
	t.pending, t.data = nil, nil

	var meta map[string]any
	if err != nil && !errors.Is(err, io.EOF) {
		meta = map[string]any{"sseError": err.Error()}
	}
	if t.truncated {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["sseTruncated"] = true
	}
	t.span.End(lens.SpanEnd{Meta: meta})
}
