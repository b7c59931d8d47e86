package ingest

import (
	"time"

	"github.com/jonwraymond/tylolens/lens"
)

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func newTrace(id string, spans ...*lens.Span) *lens.Trace {
	for _, s := range spans {
		s.TraceID = id
	}
	return &lens.Trace{
		TraceID:   id,
		App:       lens.AppInfo{Name: "checkout"},
		StartedAt: t0,
		Spans:     spans,
	}
}

func span(id string, startMs int) *lens.Span {
	return &lens.Span{ID: id, Kind: lens.KindLLM, Name: "chat", StartTime: at(startMs)}
}

// fakeClock is a settable clock for TTL and rate tests.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
