package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/jonwraymond/tylolens/export"
	"github.com/jonwraymond/tylolens/intercept"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
	"github.com/jonwraymond/tylolens/plugins"
)

// Runtime is a Lens built from a File together with its telemetry.
type Runtime struct {
	Lens     *lens.Lens
	Observer observe.Observer
	Logger   observe.Logger
}

// Shutdown disposes the Lens and flushes telemetry.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.Lens.Dispose()
	return r.Observer.Shutdown(ctx)
}

type buildOptions struct {
	stdout io.Writer
	client *http.Client
}

// BuildOption adjusts Build.
type BuildOption func(*buildOptions)

// WithStdout redirects the console exporter. Default: os.Stdout.
func WithStdout(w io.Writer) BuildOption {
	return func(o *buildOptions) { o.stdout = w }
}

// WithHTTPClient selects the client the network plugin instruments.
// Default: http.DefaultClient.
func WithHTTPClient(c *http.Client) BuildOption {
	return func(o *buildOptions) { o.client = c }
}

// Build validates f and creates the observer, exporters, plugins and Lens
// it describes.
func (f *File) Build(ctx context.Context, opts ...BuildOption) (*Runtime, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, f.observeConfig())
	if err != nil {
		return nil, fmt.Errorf("config: observer: %w", err)
	}
	rt, err := f.build(obs, o)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	return rt, nil
}

func (f *File) build(obs observe.Observer, o buildOptions) (*Runtime, error) {
	logger := obs.Logger()

	table, err := f.pricingTable()
	if err != nil {
		return nil, err
	}
	exporters, err := f.exporters(obs, o)
	if err != nil {
		return nil, err
	}
	plugs, err := f.plugins(obs, o)
	if err != nil {
		return nil, err
	}

	l, err := lens.New(lens.Config{
		App:               f.App,
		Ethics:            f.Ethics,
		Pricing:           table,
		Exporters:         exporters,
		Plugins:           plugs,
		DisableAutoStart:  f.DisableAutoStart,
		AutoFlushOnExport: f.AutoFlushOnExport,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("config: lens: %w", err)
	}
	logger.Debug(context.Background(), "lens built",
		observe.F("app", f.App.Name),
		observe.F("exporters", len(exporters)),
		observe.F("plugins", len(plugs)),
	)
	return &Runtime{Lens: l, Observer: obs, Logger: logger}, nil
}

func (f *File) exporters(obs observe.Observer, o buildOptions) ([]lens.Exporter, error) {
	var out []lens.Exporter
	c := f.Exporters
	if c.Console != nil {
		out = append(out, export.Console(export.ConsoleOptions{Writer: o.stdout, Verbose: c.Console.Verbose}))
	}
	if c.File != nil {
		e, err := export.File(export.FileOptions{Path: c.File.Path, Pretty: c.File.Pretty})
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if c.Webhook != nil {
		var client *http.Client
		if c.Webhook.Timeout > 0 {
			client = &http.Client{Timeout: c.Webhook.Timeout}
		}
		e, err := export.Webhook(export.WebhookOptions{
			URL:        c.Webhook.URL,
			Headers:    c.Webhook.Headers,
			Client:     client,
			SigningKey: []byte(c.Webhook.SigningKey),
			Issuer:     c.Webhook.Issuer,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if c.OTel {
		out = append(out, export.OTel(observe.NewTracer(obs.Tracer())))
	}
	return out, nil
}

func (f *File) plugins(obs observe.Observer, o buildOptions) ([]lens.Plugin, error) {
	var out []lens.Plugin
	c := f.Plugins
	if c.Ethics != nil {
		out = append(out, plugins.Ethics(*c.Ethics))
	}
	if c.Metrics {
		m, err := observe.NewMetrics(obs.Meter())
		if err != nil {
			return nil, fmt.Errorf("config: metrics: %w", err)
		}
		out = append(out, plugins.Metrics(m))
	}
	if c.Network != nil {
		out = append(out, plugins.Network(plugins.NetworkOptions{
			Client:  o.client,
			Options: networkOptions(c.Network),
		}))
	}
	if c.Realtime != nil {
		opts := plugins.DefaultRealtimeOptions(c.Realtime.URL)
		opts.Headers = c.Realtime.Headers
		if c.Realtime.Debounce > 0 {
			opts.Debounce = c.Realtime.Debounce
		}
		if c.Realtime.IncludeFinal != nil {
			opts.IncludeFinal = *c.Realtime.IncludeFinal
		}
		opts.SigningKey = []byte(c.Realtime.SigningKey)
		opts.Issuer = c.Realtime.Issuer
		p, err := plugins.Realtime(opts)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	// AutoTrace goes last so the other export listeners run first.
	if c.AutoTrace != nil {
		out = append(out, plugins.AutoTrace(plugins.AutoTraceOptions{
			Idle:  c.AutoTrace.Idle,
			Flush: c.AutoTrace.Flush,
		}))
	}
	return out, nil
}

func networkOptions(c *NetworkConfig) []intercept.Option {
	var opts []intercept.Option
	if len(c.Hosts) > 0 {
		hosts := slices.Clone(c.Hosts)
		opts = append(opts, intercept.WithShouldTrace(func(raw string) bool {
			u, err := url.Parse(raw)
			if err != nil {
				return false
			}
			return slices.ContainsFunc(hosts, func(h string) bool {
				return strings.EqualFold(h, u.Hostname())
			})
		}))
	}
	if c.CaptureBody {
		opts = append(opts, intercept.WithCaptureBody())
	}
	if c.CaptureResponseBody {
		opts = append(opts, intercept.WithCaptureResponseBody())
	}
	if c.Headers {
		opts = append(opts, intercept.WithHeaders())
	}
	if c.SSE != nil {
		opts = append(opts, intercept.WithSSE(c.SSE.MaxBytes, c.SSE.MaxEvents))
	}
	return opts
}
