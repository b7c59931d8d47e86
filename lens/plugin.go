package lens

import (
	"context"

	"github.com/jonwraymond/tylolens/observe"
	"github.com/jonwraymond/tylolens/tokens"
)

// Exporter is a sink for finished traces.
//
// Contract:
// - Concurrency: Export may be called from a background goroutine.
// - Ownership: the trace is a snapshot; exporters must not mutate it.
// - Errors: returned errors and panics are logged by the Lens and never
// reach the instrumented application.
type Exporter interface {
	Name() string
	Export(ctx context.Context, t *Trace) error
}

type funcExporter struct {
	name string
	fn   func(context.Context, *Trace) error
}

func (e funcExporter) Name() string { return e.name }

func (e funcExporter) Export(ctx context.Context, t *Trace) error { return e.fn(ctx, t) }

// ExporterFunc adapts a function to Exporter.
func ExporterFunc(name string, fn func(context.Context, *Trace) error) Exporter {
	return funcExporter{name: name, fn: fn}
}

// Plugin attaches optional behavior to a Lens.
//
// Contract:
// - Setup runs once, synchronously, inside Lens.Use.
// - The returned dispose function may be nil; when set it is called once
// by Lens.Dispose.
// - Errors: a setup error aborts registration and is returned by Use.
type Plugin interface {
	Name() string
	Setup(ctx PluginContext) (dispose func(), err error)
}

type funcPlugin struct {
	name  string
	setup func(PluginContext) (func(), error)
}

func (p funcPlugin) Name() string { return p.name }

func (p funcPlugin) Setup(ctx PluginContext) (func(), error) { return p.setup(ctx) }

// PluginFunc adapts a setup function to Plugin.
func PluginFunc(name string, setup func(PluginContext) (func(), error)) Plugin {
	return funcPlugin{name: name, setup: setup}
}

// SpanStarter opens spans. Lens and PluginContext implement it, so
// instrumentation can be built from either.
type SpanStarter interface {
	StartSpan(ctx context.Context, start SpanStart) (*SpanHandle, error)
}

// PluginContext is the capability surface handed to plugins.
type PluginContext interface {
	On(t EventType, h Handler) *Subscription
	AddExporter(e Exporter)
	StartTrace() *Trace
	Trace() (*Trace, error)
	EndTrace() (*Trace, error)
	ExportTrace() (*Trace, error)
	Flush(ctx context.Context, t *Trace) error
	ExportAndFlush(ctx context.Context) (*Trace, error)
	SetTokenEstimator(e tokens.Estimator)
	StartSpan(ctx context.Context, start SpanStart) (*SpanHandle, error)
	Snapshot() (*Trace, error)
	Logger() observe.Logger
}

var (
	_ PluginContext = (*Lens)(nil)
	_ SpanStarter   = (*Lens)(nil)
)
