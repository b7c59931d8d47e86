package lens

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock advances 10ms on every reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(10 * time.Millisecond)
	return t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s_%d", prefix, s.n)
}

func newTestLens(t *testing.T, mutate func(*Config)) *Lens {
	t.Helper()
	cfg := DefaultConfig(AppInfo{Name: "test-app", Environment: "dev"})
	cfg.Now = newFakeClock().Now
	cfg.NewID = (&seqIDs{}).next
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Dispose)
	return l
}

// recorder captures event types in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handler(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) subscribeAll(l *Lens) {
	for _, t := range []EventType{EventTraceStart, EventTraceEnd, EventSpanStart, EventSpanUpdate, EventSpanEnd, EventExport} {
		l.On(t, r.handler)
	}
}
