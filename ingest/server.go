package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/tylolens/auth"
	"github.com/jonwraymond/tylolens/health"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

// Response messages.
const (
	msgReadOnly     = "Read-only mode"
	msgInvalidTrace = "Invalid trace payload"
	msgTooLarge     = "Payload too large"
	msgRateLimited  = "Rate limit exceeded"
	msgNotFound     = "Trace not found"
	msgUnavailable  = "Store unavailable"
)

// streamKeepalive is the comment interval on idle streams.
const streamKeepalive = 15 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithLogger sets the logger. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// WithRegisterer registers the server metrics with reg.
// Default: metrics are collected but not registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(srv *Server) { srv.reg = reg }
}

// WithHealthCheck adds a readiness check.
func WithHealthCheck(c health.Checker) Option {
	return func(srv *Server) { srv.checks = append(srv.checks, c) }
}

// Server is the ingest HTTP handler.
type Server struct {
	cfg     Config
	store   Store
	logger  observe.Logger
	reg     prometheus.Registerer
	checks  []health.Checker
	metrics *serverMetrics
	limiter *rateLimiter
	health  *health.Aggregator
	handler http.Handler

	draining atomic.Bool
}

// NewServer builds a Server from cfg. Zero limits select the defaults.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observe.NopLogger()
	}
	s.logger = s.logger.With(observe.F("component", "ingest"))
	if s.store == nil {
		s.store = NewMemoryStore(s.cfg.MaxTraces, s.cfg.TTL)
	}
	s.metrics = newServerMetrics(s.reg, s.store)
	if ms, ok := s.store.(*MemoryStore); ok {
		ms.dropped = s.metrics.dropped.Inc
	}
	if s.cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(s.cfg.RateLimit, s.cfg.Burst)
	}

	authn, err := s.authenticator()
	if err != nil {
		return nil, err
	}

	s.health = health.NewAggregator()
	s.health.Register(health.NewCheckerFunc("store", s.checkStore))
	s.health.Register(health.NewCheckerFunc("draining", s.checkDraining))
	for _, c := range s.checks {
		s.health.Register(c)
	}

	api := http.NewServeMux()
	s.route(api, "POST /api/ingest", s.handleIngest)
	s.route(api, "GET /api/traces", s.handleList)
	s.route(api, "GET /api/traces/{id}", s.handleGet)
	s.route(api, "GET /api/stream", s.handleStream)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth.Middleware(authn, s.logger)(api))
	s.route(mux, "GET /healthz", health.LivenessHandler())
	s.route(mux, "GET /readyz", health.ReadinessHandler(s.health))
	s.handler = mux
	return s, nil
}

// authenticator returns nil when the config requires no credentials.
func (s *Server) authenticator() (auth.Authenticator, error) {
	if !s.cfg.AuthEnabled() {
		return nil, nil
	}
	var authns []auth.Authenticator
	if s.cfg.Secret != "" {
		j, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(s.cfg.Secret),
			Issuer: s.cfg.Issuer,
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: jwt: %w", err)
		}
		authns = append(authns, j)
	}
	if s.cfg.DemoToken != "" {
		authns = append(authns, auth.NewDemoTokenAuthenticator(s.cfg.DemoToken))
	}
	return auth.NewCompositeAuthenticator(authns...), nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Store returns the backing store.
func (s *Server) Store() Store { return s.store }

// Config returns the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// Drain marks the server not ready and, for a MemoryStore, closes it so
// open streams end. Call it before http.Server.Shutdown.
func (s *Server) Drain() {
	if s.draining.Swap(true) {
		return
	}
	if ms, ok := s.store.(*MemoryStore); ok {
		ms.Close()
	}
	s.logger.Info(context.Background(), "draining")
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.requests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
	}))
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cfg.ReadOnly {
		s.metrics.rejected.WithLabelValues("read_only").Inc()
		writeJSON(w, http.StatusForbidden, response{Error: msgReadOnly})
		return
	}
	if s.limiter != nil && !s.limiter.allow(clientKey(r)) {
		s.metrics.rejected.WithLabelValues("rate_limited").Inc()
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, response{Error: msgRateLimited})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.rejected.WithLabelValues("too_large").Inc()
			writeJSON(w, http.StatusRequestEntityTooLarge, response{Error: msgTooLarge})
			return
		}
		s.metrics.rejected.WithLabelValues("read_error").Inc()
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}

	var t lens.Trace
	if err := json.Unmarshal(body, &t); err != nil {
		s.metrics.rejected.WithLabelValues("invalid_json").Inc()
		writeJSON(w, http.StatusBadRequest, response{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	stored, err := s.store.Put(ctx, &t)
	switch {
	case errors.Is(err, ErrInvalidTrace):
		s.metrics.rejected.WithLabelValues("invalid_trace").Inc()
		writeJSON(w, http.StatusBadRequest, response{Error: msgInvalidTrace})
		return
	case errors.Is(err, ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, response{Error: msgUnavailable})
		return
	case err != nil:
		s.logger.Error(ctx, "store trace", observe.F("trace.id", t.TraceID), observe.Err(err))
		writeJSON(w, http.StatusInternalServerError, response{Error: err.Error()})
		return
	}

	s.metrics.ingested.Inc()
	s.metrics.payload.Observe(float64(len(body)))
	s.logger.Debug(ctx, "trace ingested",
		observe.F("trace.id", stored.TraceID),
		observe.F("app", stored.App.Name),
		observe.F("spans", len(stored.Spans)),
		observe.F("principal", auth.PrincipalFromContext(ctx)),
	)
	writeJSON(w, http.StatusOK, response{OK: true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Traces []*lens.Trace `json:"traces"`
	}{Traces: s.store.List(r.Context())})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, ok := s.store.Get(r.Context(), r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, response{Error: msgNotFound})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	updates, cancel := s.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.SetWriteDeadline(time.Time{})

	s.metrics.subscribers.Inc()
	defer s.metrics.subscribers.Dec()

	if err := writeEvent(w, map[string]string{"hello": "tylo-lens"}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := io.WriteString(w, ":keepalive\n\n"); err != nil {
				return
			}
		case t, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, t); err != nil {
				s.logger.Debug(ctx, "stream write failed", observe.Err(err))
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) checkStore(context.Context) health.Result {
	n := s.store.Len()
	details := map[string]any{"traces": n, "maxTraces": s.cfg.MaxTraces}
	if ms, ok := s.store.(*MemoryStore); ok {
		details["subscribers"] = ms.Subscribers()
	}
	return health.Healthy(fmt.Sprintf("%d traces", n)).WithDetails(details)
}

func (s *Server) checkDraining(context.Context) health.Result {
	if s.draining.Load() {
		return health.Unhealthy("draining", ErrClosed)
	}
	return health.Healthy("accepting traces")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

var _ http.Handler = (*Server)(nil)
