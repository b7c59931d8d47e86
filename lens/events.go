package lens

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/tylolens/observe"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventTraceStart EventType = "trace.start"
	EventTraceEnd   EventType = "trace.end"
	EventSpanStart  EventType = "span.start"
	EventSpanUpdate EventType = "span.update"
	EventSpanEnd    EventType = "span.end"
	EventExport     EventType = "export"
)

// Event is delivered to subscribers. Span is set for span events and
// Update for span.update.
type Event struct {
	Type   EventType
	Trace  *Trace
	Span   *Span
	Update *SpanUpdate
}

// Handler receives events.
type Handler func(Event)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Unsubscribe removes the handler. Calling it more than once is safe.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.remove)
}

type subscriber struct {
	handler Handler
}

// Bus is a typed publish/subscribe registry.
//
// Contract:
// - Concurrency: safe for concurrent use; Publish never holds the lock
// while invoking handlers.
// - Ordering: handlers run synchronously in registration order.
// - Errors: a panicking handler is recovered and logged; delivery continues.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]*subscriber
	logger   observe.Logger
}

// NewBus creates an empty bus. A nil logger discards handler failures.
func NewBus(logger observe.Logger) *Bus {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Bus{handlers: map[EventType][]*subscriber{}, logger: logger}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t EventType, h Handler) *Subscription {
	sub := &subscriber{handler: h}

	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], sub)
	b.mu.Unlock()

	return &Subscription{remove: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.handlers[t]
		for i, s := range list {
			if s == sub {
				b.handlers[t] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.handlers[t]) == 0 {
			delete(b.handlers, t)
		}
	}}
}

// Publish delivers e to every handler registered for e.Type.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s *subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(context.Background(), "listener failed",
				observe.F("event", string(e.Type)),
				observe.F("error", fmt.Sprint(r)),
			)
		}
	}()
	s.handler(e)
}

// Len returns the number of handlers registered for t.
func (b *Bus) Len(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// Clear removes every handler.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.handlers = map[EventType][]*subscriber{}
	b.mu.Unlock()
}
