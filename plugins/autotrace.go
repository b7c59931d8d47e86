package plugins

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

// DefaultIdle is the AutoTrace idle period.
const DefaultIdle = 1500 * time.Millisecond

// AutoTraceOptions configures AutoTrace.
type AutoTraceOptions struct {
	// Idle is how long after the last span end the trace is exported.
	// Default: DefaultIdle
	Idle time.Duration

	// Flush waits for every exporter (ExportAndFlush) instead of only
	// exporting.
	Flush bool
}

// AutoTrace ends and exports the active trace when no span has ended for
// opts.Idle. Each span end restarts the countdown; a new trace cancels it.
func AutoTrace(opts AutoTraceOptions) lens.Plugin {
	if opts.Idle <= 0 {
		opts.Idle = DefaultIdle
	}
	return lens.PluginFunc("auto-trace", func(pc lens.PluginContext) (func(), error) {
		a := &autoTrace{pc: pc, opts: opts, logger: pc.Logger().With(observe.F("plugin", "auto-trace"))}
		onEnd := pc.On(lens.EventSpanEnd, func(lens.Event) { a.reset() })
		onStart := pc.On(lens.EventTraceStart, func(lens.Event) { a.cancel(false) })
		return func() {
			onEnd.Unsubscribe()
			onStart.Unsubscribe()
			a.cancel(true)
		}, nil
	})
}

type autoTrace struct {
	pc     lens.PluginContext
	opts   AutoTraceOptions
	logger observe.Logger

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64 // bumped on every reset or cancel; stale timers see a mismatch
	closed bool
}

func (a *autoTrace) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.stopLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.opts.Idle, func() { a.fire(gen) })
}

func (a *autoTrace) cancel(dispose bool) {
	a.mu.Lock()
	a.stopLocked()
	a.closed = a.closed || dispose
	a.mu.Unlock()
}

func (a *autoTrace) stopLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *autoTrace) fire(gen uint64) {
	a.mu.Lock()
	if a.closed || gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	var err error
	if a.opts.Flush {
		_, err = a.pc.ExportAndFlush(context.Background())
	} else {
		_, err = a.pc.ExportTrace()
	}
	if err != nil {
		a.logger.Warn(context.Background(), "idle export failed", observe.Err(err))
	}
}
