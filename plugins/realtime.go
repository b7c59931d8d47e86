package plugins

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jonwraymond/tylolens/export"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

// DefaultDebounce is the Realtime push delay.
const DefaultDebounce = 250 * time.Millisecond

// RealtimeOptions configures Realtime.
type RealtimeOptions struct {
	// URL receives each snapshot as a JSON POST. Required.
	URL string

	// Headers are added to every push.
	Headers map[string]string

	// Debounce delays a push after the first change.
	// Default: DefaultDebounce
	Debounce time.Duration

	// IncludeFinal also pushes on trace end and export.
	IncludeFinal bool

	// Client sends the pushes. Default: as export.Webhook.
	Client *http.Client

	// SigningKey and Issuer sign pushes as export.Webhook does.
	SigningKey []byte
	Issuer     string
}

// DefaultRealtimeOptions returns options for url with IncludeFinal set.
func DefaultRealtimeOptions(url string) RealtimeOptions {
	return RealtimeOptions{URL: url, Debounce: DefaultDebounce, IncludeFinal: true}
}

// Realtime pushes snapshots of the live trace to opts.URL while it is
// being recorded. Span updates and ends (and, with IncludeFinal, trace end
// and export) arm a single timer; changes while it is armed are coalesced
// into the same push. A change during a push schedules one more push after
// it completes. Push failures are logged and otherwise ignored.
func Realtime(opts RealtimeOptions) (lens.Plugin, error) {
	if opts.URL == "" {
		return nil, export.ErrMissingURL
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	sink, err := export.Webhook(export.WebhookOptions{
		URL:        opts.URL,
		Headers:    opts.Headers,
		Client:     opts.Client,
		SigningKey: opts.SigningKey,
		Issuer:     opts.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return lens.PluginFunc("realtime:webhook", func(pc lens.PluginContext) (func(), error) {
		r := &realtime{
			pc:       pc,
			sink:     sink,
			debounce: opts.Debounce,
			logger:   pc.Logger().With(observe.F("plugin", "realtime:webhook")),
		}
		events := []lens.EventType{lens.EventSpanUpdate, lens.EventSpanEnd}
		if opts.IncludeFinal {
			events = append(events, lens.EventTraceEnd, lens.EventExport)
		}
		subs := make([]*lens.Subscription, 0, len(events))
		for _, t := range events {
			subs = append(subs, pc.On(t, func(lens.Event) { r.schedule() }))
		}
		return func() {
			for _, s := range subs {
				s.Unsubscribe()
			}
			r.close()
		}, nil
	}), nil
}

type realtime struct {
	pc       lens.PluginContext
	sink     lens.Exporter
	debounce time.Duration
	logger   observe.Logger

	mu       sync.Mutex
	timer    *time.Timer
	inflight bool
	pending  bool
	closed   bool
}

func (r *realtime) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.debounce, r.post)
}

func (r *realtime) post() {
	r.mu.Lock()
	r.timer = nil
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.inflight {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.inflight = true
	r.pending = false
	r.mu.Unlock()

	r.push()

	r.mu.Lock()
	r.inflight = false
	again := r.pending
	r.mu.Unlock()
	if again {
		r.schedule()
	}
}

func (r *realtime) push() {
	ctx := context.Background()
	snap, err := r.pc.Snapshot()
	if errors.Is(err, lens.ErrNotStarted) {
		return
	}
	if err != nil {
		r.logger.Warn(ctx, "snapshot failed", observe.Err(err))
		return
	}
	if err := r.sink.Export(ctx, snap); err != nil {
		r.logger.Warn(ctx, "realtime push failed",
			observe.F("trace_id", snap.TraceID),
			observe.Err(err),
		)
	}
}

func (r *realtime) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
