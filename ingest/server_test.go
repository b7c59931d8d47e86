package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/tylolens/auth"
	"github.com/jonwraymond/tylolens/health"
	"github.com/jonwraymond/tylolens/lens"
)

const tracePayload = `{
  "traceId": "trace_1",
  "app": {"name": "checkout"},
  "startedAt": "2025-03-04T10:00:00.000Z",
  "spans": [
    {"id": "span_1", "traceId": "trace_1", "kind": "llm", "name": "chat", "startTime": "2025-03-04T10:00:00.100Z"}
  ]
}`

func newServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()
	srv, err := NewServer(cfg, opts...)
	require.NoError(t, err)
	return srv
}

func do(srv http.Handler, method, target, body string, mod ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, m := range mod {
		m(req)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_IngestAndList(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newServer(t, DefaultConfig(), WithRegisterer(reg))

	rec := do(srv, http.MethodPost, "/api/ingest", tracePayload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = do(srv, http.MethodGet, "/api/traces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Traces []*lens.Trace `json:"traces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Traces, 1)
	assert.Equal(t, "trace_1", list.Traces[0].TraceID)
	assert.Equal(t, "span_1", list.Traces[0].Spans[0].ID)

	rec = do(srv, http.MethodGet, "/api/traces/trace_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace_1", decode(t, rec)["traceId"])

	assert.InDelta(t, 1, testutil.ToFloat64(srv.metrics.ingested), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(srv.metrics.traces), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(srv.metrics.requests.WithLabelValues("POST /api/ingest", "200")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestServer_EmptyList(t *testing.T) {
	srv := newServer(t, DefaultConfig())
	rec := do(srv, http.MethodGet, "/api/traces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"traces":[]}`, rec.Body.String())
}

func TestServer_IngestRejects(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func(*Config)
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing traceId",
			body:     `{"app":{"name":"checkout"},"spans":[]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "Invalid trace payload",
		},
		{
			name:     "missing app name",
			body:     `{"traceId":"t","app":{},"spans":[]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "Invalid trace payload",
		},
		{
			name:     "invalid json",
			body:     `{"traceId":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "Invalid JSON",
		},
		{
			name:     "read only",
			cfg:      func(c *Config) { c.ReadOnly = true },
			body:     tracePayload,
			wantCode: http.StatusForbidden,
			wantErr:  "Read-only mode",
		},
		{
			name:     "too large",
			cfg:      func(c *Config) { c.MaxBodyBytes = 16 },
			body:     tracePayload,
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "Payload too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			srv := newServer(t, cfg)
			rec := do(srv, http.MethodPost, "/api/ingest", tt.body)
			require.Equal(t, tt.wantCode, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Contains(t, body["error"], tt.wantErr)
			assert.Equal(t, 0, srv.Store().Len())
		})
	}
}

func TestServer_GetMissing(t *testing.T) {
	srv := newServer(t, DefaultConfig())
	rec := do(srv, http.MethodGet, "/api/traces/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Trace not found", decode(t, rec)["error"])
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	srv := newServer(t, cfg)

	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/ingest", tracePayload).Code)
	rec := do(srv, http.MethodPost, "/api/ingest", tracePayload)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestServer_DemoToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DemoToken = "s3cret"
	srv := newServer(t, cfg)

	rec := do(srv, http.MethodGet, "/api/traces", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.UnauthorizedMessage, rec.Body.String())

	rec = do(srv, http.MethodGet, "/api/traces?token=s3cret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	rec = do(srv, http.MethodGet, "/api/traces", "", func(r *http.Request) { r.AddCookie(cookies[0]) })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/api/ingest", tracePayload, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)
}

func TestServer_SignedBearer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Secret = "shared"
	cfg.Issuer = "tylolens"
	srv := newServer(t, cfg)

	sign := func(secret string) string {
		s, err := auth.NewSigner(auth.SignerConfig{Secret: []byte(secret), Issuer: "tylolens", Subject: "checkout"})
		require.NoError(t, err)
		tok, err := s.Sign()
		require.NoError(t, err)
		return tok
	}

	rec := do(srv, http.MethodPost, "/api/ingest", tracePayload, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+sign("shared"))
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/api/ingest", tracePayload, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+sign("other"))
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Probes(t *testing.T) {
	srv := newServer(t, DefaultConfig(), WithHealthCheck(health.NewCheckerFunc("extra", func(context.Context) health.Result {
		return health.Degraded("warming up")
	})))

	rec := do(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Contains(t, checks, "store")
	assert.Contains(t, checks, "draining")
	assert.Contains(t, checks, "extra")

	srv.Drain()
	srv.Drain()
	rec = do(srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])

	rec = do(srv, http.MethodPost, "/api/ingest", tracePayload)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Stream(t *testing.T) {
	srv := newServer(t, DefaultConfig())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				events <- data
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case e, ok := <-events:
			require.True(t, ok, "stream closed")
			return e
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	assert.JSONEq(t, `{"hello":"tylo-lens"}`, next())

	post, err := http.Post(ts.URL+"/api/ingest", "application/json", strings.NewReader(tracePayload))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var got lens.Trace
	require.NoError(t, json.Unmarshal([]byte(next()), &got))
	assert.Equal(t, "trace_1", got.TraceID)

	srv.Drain()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "stream should end after Drain")
	case <-ctx.Done():
		t.Fatal("stream did not end after Drain")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative body", func(c *Config) { c.MaxBodyBytes = -1 }},
		{"negative traces", func(c *Config) { c.MaxTraces = -1 }},
		{"negative ttl", func(c *Config) { c.TTL = -time.Second }},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }},
		{"negative burst", func(c *Config) { c.Burst = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := NewServer(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}
