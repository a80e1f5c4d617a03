package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryBus is the in-process Bus used within one running server. Handlers
// run on the publisher's goroutine; a panicking handler is recovered and
// logged so one bad subscriber cannot take down a mutation path.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Type]map[int]Handler
	logger zerolog.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger zerolog.Logger) *MemoryBus {
	return &MemoryBus{
		subs:   make(map[Type]map[int]Handler),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Publish delivers the event to current subscribers of its type.
func (b *MemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.EventType()]))
	for _, h := range b.subs[event.EventType()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, event, h)
	}
}

func (b *MemoryBus) deliver(ctx context.Context, event Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("event_type", string(event.EventType())).
				Msg("event handler panicked")
		}
	}()
	h(ctx, event)
}

// Subscribe registers a handler for one event type.
func (b *MemoryBus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[t] == nil {
		b.subs[t] = make(map[int]Handler)
	}
	b.subs[t][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs[t], id)
		b.mu.Unlock()
	}
}

// Close implements Bus.
func (b *MemoryBus) Close() error { return nil }
