package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/tylolens/lens"
)

// Store holds ingested traces.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: traces passed to Put and returned by every method are
// copies; callers may modify them freely.
// - Ordering: List returns the most recently written trace first.
type Store interface {
	// Put stores t, merging it into a stored trace with the same id, and
	// returns the stored result.
	Put(ctx context.Context, t *lens.Trace) (*lens.Trace, error)

	// List returns the live traces, newest first.
	List(ctx context.Context) []*lens.Trace

	// Get returns a live trace by id.
	Get(ctx context.Context, id string) (*lens.Trace, bool)

	// Subscribe delivers every stored result to the returned channel until
	// cancel is called. Slow subscribers miss updates rather than block Put.
	Subscribe() (updates <-chan *lens.Trace, cancel func())

	// Len returns the number of live traces.
	Len() int
}

type storeEntry struct {
	trace     *lens.Trace
	expiresAt time.Time
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 32

// MemoryStore is a bounded in-memory Store with per-trace expiry.
type MemoryStore struct {
	max int
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*storeEntry
	order   []string // newest first
	subs    map[chan *lens.Trace]struct{}
	closed  bool

	// dropped counts updates a full subscriber channel missed.
	dropped func()
}

// NewMemoryStore creates a store keeping at most maxTraces traces, each
// for ttl after its last write. Non-positive values select the defaults.
func NewMemoryStore(maxTraces int, ttl time.Duration) *MemoryStore {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		max:     maxTraces,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*storeEntry),
		subs:    make(map[chan *lens.Trace]struct{}),
		dropped: func() {},
	}
}

// Put stores t. The stored trace moves to the front; the oldest traces
// beyond the bound are evicted.
func (s *MemoryStore) Put(_ context.Context, t *lens.Trace) (*lens.Trace, error) {
	if t == nil || t.TraceID == "" || t.App.Name == "" {
		return nil, ErrInvalidTrace
	}
	now := s.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.pruneLocked(now)

	stored := t.Clone()
	if e, ok := s.entries[t.TraceID]; ok {
		stored = mergeTrace(e.trace, t)
	}
	s.entries[t.TraceID] = &storeEntry{trace: stored, expiresAt: now.Add(s.ttl)}

	order := make([]string, 0, len(s.order)+1)
	order = append(order, t.TraceID)
	for _, id := range s.order {
		if id != t.TraceID {
			order = append(order, id)
		}
	}
	for len(order) > s.max {
		delete(s.entries, order[len(order)-1])
		order = order[:len(order)-1]
	}
	s.order = order

	for ch := range s.subs {
		select {
		case ch <- stored.Clone():
		default:
			s.dropped()
		}
	}
	s.mu.Unlock()

	return stored.Clone(), nil
}

// List returns the live traces, newest first.
func (s *MemoryStore) List(_ context.Context) []*lens.Trace {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*lens.Trace, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if now.After(e.expiresAt) {
			continue
		}
		out = append(out, e.trace.Clone())
	}
	return out
}

// Get returns a live trace by id. An expired trace is removed.
func (s *MemoryStore) Get(_ context.Context, id string) (*lens.Trace, bool) {
	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		s.mu.Lock()
		s.pruneLocked(now)
		s.mu.Unlock()
		return nil, false
	}
	return e.trace.Clone(), true
}

// Subscribe registers a subscriber. After Close the channel is closed
// immediately.
func (s *MemoryStore) Subscribe() (<-chan *lens.Trace, func()) {
	ch := make(chan *lens.Trace, subscriberBuffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscribers.
func (s *MemoryStore) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Len returns the number of live traces.
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close rejects further writes and closes every subscriber channel.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	clear(s.subs)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	order := s.order[:0]
	for _, id := range s.order {
		if now.After(s.entries[id].expiresAt) {
			delete(s.entries, id)
			continue
		}
		order = append(order, id)
	}
	s.order = order
}

var _ Store = (*MemoryStore)(nil)
