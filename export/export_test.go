package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/tylolens/auth"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

func TestConsole_SummaryLine(t *testing.T) {
	var buf bytes.Buffer
	e := Console(ConsoleOptions{Writer: &buf})
	if e.Name() != "console" {
		t.Errorf("Name() = %q", e.Name())
	}
	if err := e.Export(context.Background(), fixtureTrace()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := "[tylo-lens] trace=trace_1 spans=3 tokens=1520 cost=0.012500 pii=yes\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestConsole_NoPIIAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	tr := &lens.Trace{TraceID: "trace_2", App: lens.AppInfo{Name: "a"}, StartedAt: t0, Spans: []*lens.Span{}}
	if err := Console(ConsoleOptions{Writer: &buf, Verbose: true}).Export(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	line, doc, ok := strings.Cut(buf.String(), "\n")
	if !ok {
		t.Fatalf("output = %q", buf.String())
	}
	if line != "[tylo-lens] trace=trace_2 spans=0 tokens=0 cost=0.000000 pii=no" {
		t.Errorf("line = %q", line)
	}
	var got lens.Trace
	if err := json.Unmarshal([]byte(doc), &got); err != nil {
		t.Fatalf("verbose document: %v", err)
	}
	if got.TraceID != "trace_2" || !strings.Contains(doc, "\n  \"traceId\"") {
		t.Errorf("document = %q", doc)
	}
}

func TestFile_WritesDocument(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "trace.json")
		e, err := File(FileOptions{Path: path, Pretty: pretty})
		if err != nil {
			t.Fatal(err)
		}
		want := fixtureTrace()
		if err := e.Export(context.Background(), want); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if got := bytes.Contains(data, []byte("\n  ")); got != pretty {
			t.Errorf("pretty=%v: indented = %v", pretty, got)
		}
		var got lens.Trace
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(&got, want) {
			t.Errorf("pretty=%v: round trip mismatch", pretty)
		}
		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("temporary files left behind: %d entries", len(entries))
		}
	}
}

func TestFile_Errors(t *testing.T) {
	if _, err := File(FileOptions{}); !errors.Is(err, ErrMissingPath) {
		t.Errorf("error = %v, want ErrMissingPath", err)
	}
	e, err := File(FileOptions{Path: filepath.Join(t.TempDir(), "missing", "trace.json")})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Export(context.Background(), fixtureTrace()); err == nil {
		t.Error("Export() into a missing directory succeeded")
	}
}

func TestWebhook_PostsJSON(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e, err := Webhook(WebhookOptions{URL: srv.URL, Headers: map[string]string{"X-Team": "ml"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Export(context.Background(), fixtureTrace()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if gotHeaders.Get("X-Team") != "ml" {
		t.Errorf("X-Team = %q", gotHeaders.Get("X-Team"))
	}
	if gotHeaders.Get("Authorization") != "" {
		t.Error("unsigned webhook sent an Authorization header")
	}
	var got lens.Trace
	if err := json.Unmarshal(gotBody, &got); err != nil || got.TraceID != "trace_1" {
		t.Errorf("body = %s (%v)", gotBody, err)
	}
}

func TestWebhook_Transform(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	e, _ := Webhook(WebhookOptions{
		URL:       srv.URL,
		Transform: func(t *lens.Trace) any { return map[string]string{"id": t.TraceID} },
	})
	if err := e.Export(context.Background(), fixtureTrace()); err != nil {
		t.Fatal(err)
	}
	if string(gotBody) != `{"id":"trace_1"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestWebhook_NonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	e, _ := Webhook(WebhookOptions{URL: srv.URL})
	err := e.Export(context.Background(), fixtureTrace())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("error = %v, want *StatusError 502", err)
	}
	if !errors.Is(err, ErrWebhookRejected) {
		t.Error("StatusError should match ErrWebhookRejected")
	}
	if err.Error() != "webhook export failed: 502" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWebhook_SignedRequestsVerify(t *testing.T) {
	key := []byte("ingest-secret")
	verifier, err := auth.NewJWTAuthenticator(auth.JWTConfig{Secret: key, Issuer: "tylolens"})
	if err != nil {
		t.Fatal(err)
	}
	var principal string
	srv := httptest.NewServer(auth.Middleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = auth.PrincipalFromContext(r.Context())
	})))
	defer srv.Close()

	e, _ := Webhook(WebhookOptions{URL: srv.URL, SigningKey: key, Issuer: "tylolens"})
	if err := e.Export(context.Background(), fixtureTrace()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if principal != "checkout" {
		t.Errorf("principal = %q, want app name", principal)
	}

	bad, _ := Webhook(WebhookOptions{URL: srv.URL, SigningKey: []byte("wrong"), Issuer: "tylolens"})
	err = bad.Export(context.Background(), fixtureTrace())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %v, want 401", err)
	}
}

func TestWebhook_RequiresURL(t *testing.T) {
	if _, err := Webhook(WebhookOptions{}); !errors.Is(err, ErrMissingURL) {
		t.Errorf("error = %v, want ErrMissingURL", err)
	}
}

func TestOTel_ReplaysSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	e := OTel(observe.NewTracer(tp.Tracer("test")))

	tr := fixtureTrace()
	if err := e.Export(context.Background(), tr); err != nil {
		t.Fatal(err)
	}

	ended := sr.Ended()
	if len(ended) != 3 {
		t.Fatalf("ended spans = %d, want 3", len(ended))
	}
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = s
	}

	root, child, tool := byName["llm.call"], byName["http.client"], byName["tool.lookup"]
	if root == nil || child == nil || tool == nil {
		t.Fatalf("spans = %v", byName)
	}
	if !root.StartTime().Equal(t0) || !root.EndTime().Equal(*at(500)) {
		t.Errorf("root times = %v..%v", root.StartTime(), root.EndTime())
	}
	if child.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Error("http span is not a child of the llm span")
	}
	if child.SpanContext().TraceID() != root.SpanContext().TraceID() {
		t.Error("child left the root's trace")
	}
	if tool.Parent().IsValid() {
		t.Error("tool span should be a root")
	}
	if tool.Status().Code != codes.Error || tool.Status().Description != "lookup failed" {
		t.Errorf("tool status = %+v", tool.Status())
	}
	if root.Status().Code != codes.Ok {
		t.Errorf("root status = %+v", root.Status())
	}
}

func TestOTel_OpenSpansEndAtTraceEnd(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	tr := fixtureTrace()
	tr.Spans[1].EndTime = nil
	tr.Spans[1].ParentID = "span_missing"
	if err := OTel(observe.NewTracer(tp.Tracer("test"))).Export(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	for _, s := range sr.Ended() {
		if s.Name() != "http.client" {
			continue
		}
		if !s.EndTime().Equal(*tr.EndedAt) {
			t.Errorf("end = %v, want trace end %v", s.EndTime(), *tr.EndedAt)
		}
		if s.Parent().IsValid() {
			t.Error("span with unknown parent should be a root")
		}
		return
	}
	t.Fatal("http span not replayed")
}
