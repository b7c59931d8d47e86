package lens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/tylolens/observe"
	"github.com/jonwraymond/tylolens/pricing"
	"github.com/jonwraymond/tylolens/tokens"
)

type disposer struct {
	plugin string
	fn     func()
}

// Lens owns the active trace, the span stack, registered exporters and
// plugin disposers.
type Lens struct {
	app       AppInfo
	ethics    EthicsConfig
	pricing   pricing.Table
	autoStart bool
	autoFlush bool
	logger    observe.Logger
	bus       *Bus
	now       func() time.Time
	newID     func(string) string

	mu        sync.Mutex
	trace     *Trace
	stack     []string
	estimator tokens.Estimator
	exporters []Exporter
	disposers []disposer
	disposed  bool
}

// New creates a Lens, registering cfg.Exporters then cfg.Plugins.
func New(cfg Config) (*Lens, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	logger = logger.With(observe.F("component", "lens"), observe.F("app", cfg.App.Name))

	l := &Lens{
		app:       cfg.App,
		ethics:    cfg.Ethics,
		pricing:   cfg.Pricing,
		autoStart: !cfg.DisableAutoStart,
		autoFlush: cfg.AutoFlushOnExport,
		logger:    logger,
		bus:       NewBus(logger),
		now:       cfg.Now,
		newID:     cfg.NewID,
		estimator: tokens.Or(cfg.TokenEstimator),
	}
	if l.now == nil {
		l.now = now
	}
	if l.newID == nil {
		l.newID = newID
	}

	for _, e := range cfg.Exporters {
		l.AddExporter(e)
	}
	for _, p := range cfg.Plugins {
		if err := l.Use(p); err != nil {
			l.Dispose()
			return nil, err
		}
	}
	return l, nil
}

// Logger returns the engine logger.
func (l *Lens) Logger() observe.Logger { return l.logger }

// On subscribes h to events of type t.
func (l *Lens) On(t EventType, h Handler) *Subscription {
	return l.bus.Subscribe(t, h)
}

func (l *Lens) publish(e Event) {
	l.bus.Publish(e)
}

// SetTokenEstimator replaces the estimator used for undeclared usage.
// Nil restores the heuristic.
func (l *Lens) SetTokenEstimator(e tokens.Estimator) {
	l.mu.Lock()
	l.estimator = tokens.Or(e)
	l.mu.Unlock()
}

func (l *Lens) tokenEstimator() tokens.Estimator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.estimator
}

// StartTrace replaces the active trace with a new one.
func (l *Lens) StartTrace() *Trace {
	l.mu.Lock()
	tr := l.startTraceLocked()
	l.mu.Unlock()

	l.publish(Event{Type: EventTraceStart, Trace: tr})
	return tr
}

func (l *Lens) startTraceLocked() *Trace {
	tr := &Trace{
		TraceID:   l.newID("trace"),
		App:       l.app,
		StartedAt: l.now(),
		Spans:     []*Span{},
	}
	l.trace = tr
	l.stack = nil
	return tr
}

// currentLocked returns the active trace, starting one when there is none
// (or, with restartEnded, when the active one has ended) and auto start
// is enabled. started reports whether a trace.start event is owed.
func (l *Lens) currentLocked(restartEnded bool) (tr *Trace, started bool, err error) {
	if l.trace != nil && !(restartEnded && l.trace.EndedAt != nil) {
		return l.trace, false, nil
	}
	if !l.autoStart {
		return nil, false, ErrNotStarted
	}
	return l.startTraceLocked(), true, nil
}

func (l *Lens) current(restartEnded bool) (*Trace, error) {
	l.mu.Lock()
	tr, started, err := l.currentLocked(restartEnded)
	l.mu.Unlock()

	if started {
		l.publish(Event{Type: EventTraceStart, Trace: tr})
	}
	return tr, err
}

// Trace returns the live active trace, starting one if none exists and
// auto start is enabled. Use Snapshot for a copy safe to read while spans
// are being recorded.
func (l *Lens) Trace() (*Trace, error) {
	return l.current(false)
}

// Snapshot returns a deep copy of the active trace. It never starts one.
func (l *Lens) Snapshot() (*Trace, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trace == nil {
		return nil, ErrNotStarted
	}
	return l.trace.Clone(), nil
}

// EndTrace stamps EndedAt on first call and publishes trace.end on every
// call.
func (l *Lens) EndTrace() (*Trace, error) {
	l.mu.Lock()
	tr, started, err := l.currentLocked(false)
	if err == nil && tr.EndedAt == nil {
		ended := l.now()
		if ended.Before(tr.StartedAt) {
			ended = tr.StartedAt
		}
		tr.EndedAt = &ended
	}
	l.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if started {
		l.publish(Event{Type: EventTraceStart, Trace: tr})
	}
	l.publish(Event{Type: EventTraceEnd, Trace: tr})
	return tr, nil
}

// ExportTrace ends the active trace and publishes export with a snapshot
// of it. Export subscribers may annotate the snapshot; their analysis is
// written back to the live trace. The snapshot is returned and, with
// AutoFlushOnExport, flushed in the background.
func (l *Lens) ExportTrace() (*Trace, error) {
	return l.export(l.autoFlush)
}

func (l *Lens) export(backgroundFlush bool) (*Trace, error) {
	tr, err := l.EndTrace()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	snap := tr.Clone()
	l.mu.Unlock()

	l.publish(Event{Type: EventExport, Trace: snap})
	l.writeBack(tr, snap)

	if backgroundFlush {
		go func() { _ = l.Flush(context.Background(), snap) }()
	}
	return snap, nil
}

// writeBack copies analysis produced by export subscribers onto the live
// trace.
func (l *Lens) writeBack(live, snap *Trace) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.Analysis != nil {
		live.Analysis = snap.Clone().Analysis
	}
	byID := make(map[string]*Span, len(live.Spans))
	for _, s := range live.Spans {
		byID[s.ID] = s
	}
	for _, s := range snap.Spans {
		if s.Analysis == nil {
			continue
		}
		if target, ok := byID[s.ID]; ok {
			target.Analysis = s.Analysis.clone()
		}
	}
}

// ExportAndFlush exports the active trace and waits for every exporter.
func (l *Lens) ExportAndFlush(ctx context.Context) (*Trace, error) {
	snap, err := l.export(false)
	if err != nil {
		return nil, err
	}
	if err := l.Flush(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Flush hands t (nil selects a snapshot of the active trace) to every
// exporter in registration order. Exporter failures are logged and
// skipped; Flush only fails when no trace is available or ctx ends.
func (l *Lens) Flush(ctx context.Context, t *Trace) error {
	if t == nil {
		tr, err := l.current(false)
		if err != nil {
			return err
		}
		l.mu.Lock()
		t = tr.Clone()
		l.mu.Unlock()
	}

	l.mu.Lock()
	exporters := append([]Exporter(nil), l.exporters...)
	l.mu.Unlock()

	for _, e := range exporters {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.runExporter(ctx, e, t)
	}
	return nil
}

func (l *Lens) runExporter(ctx context.Context, e Exporter, t *Trace) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn(ctx, "exporter panicked",
				observe.F("exporter", e.Name()),
				observe.F("trace_id", t.TraceID),
				observe.F("error", fmt.Sprint(r)),
			)
		}
	}()
	if err := e.Export(ctx, t); err != nil {
		l.logger.Warn(ctx, "exporter failed",
			observe.F("exporter", e.Name()),
			observe.F("trace_id", t.TraceID),
			observe.Err(err),
		)
	}
}

// AddExporter registers e. Nil is ignored.
func (l *Lens) AddExporter(e Exporter) {
	if e == nil {
		return
	}
	l.mu.Lock()
	l.exporters = append(l.exporters, e)
	l.mu.Unlock()
}

// Use runs p's setup and keeps its dispose function.
func (l *Lens) Use(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	l.mu.Lock()
	disposed := l.disposed
	l.mu.Unlock()
	if disposed {
		return ErrDisposed
	}

	dispose, err := p.Setup(l)
	if err != nil {
		return fmt.Errorf("lens: plugin %q setup: %w", p.Name(), err)
	}
	if dispose != nil {
		l.mu.Lock()
		l.disposers = append(l.disposers, disposer{plugin: p.Name(), fn: dispose})
		l.mu.Unlock()
	}
	l.logger.Debug(context.Background(), "plugin registered", observe.F("plugin", p.Name()))
	return nil
}

// Dispose runs plugin disposers in registration order, then removes all
// subscriptions and exporters. Trace state is kept. Later calls are
// no-ops.
func (l *Lens) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	disposers := l.disposers
	l.disposers = nil
	l.mu.Unlock()

	for _, d := range disposers {
		l.runDisposer(d)
	}

	l.bus.Clear()
	l.mu.Lock()
	l.exporters = nil
	l.mu.Unlock()
}

func (l *Lens) runDisposer(d disposer) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn(context.Background(), "plugin dispose failed",
				observe.F("plugin", d.plugin),
				observe.F("error", fmt.Sprint(r)),
			)
		}
	}()
	d.fn()
}
