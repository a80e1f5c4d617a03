// Package identity provides the in-process IdentityProvider implementation.
// Real token verification lives outside this system; this provider tracks
// one current identity and fans change notifications out to subscribers.
package identity

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
)

// Memory is a mutable, in-process identity provider. Handlers run on the
// caller's goroutine, in subscription order.
type Memory struct {
	mu      sync.Mutex
	current *domain.Identity
	nextID  int
	subs    map[int]func(domain.IdentityEvent)

	bus    events.Bus
	logger zerolog.Logger
}

var _ domain.IdentityProvider = (*Memory)(nil)

// NewMemory creates an identity provider with no current identity.
// bus may be nil when no event mirroring is wanted.
func NewMemory(bus events.Bus, logger zerolog.Logger) *Memory {
	return &Memory{
		subs:   make(map[int]func(domain.IdentityEvent)),
		bus:    bus,
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

// Current returns the acting identity, or nil when anonymous.
func (m *Memory) Current(ctx context.Context) *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// Subscribe registers a handler for identity changes.
func (m *Memory) Subscribe(handler func(domain.IdentityEvent)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SignIn sets the current identity and notifies subscribers.
func (m *Memory) SignIn(ctx context.Context, ident domain.Identity) {
	m.mu.Lock()
	m.current = &ident
	handlers := m.snapshotSubs()
	m.mu.Unlock()

	m.logger.Info().Str("identity_id", ident.ID.String()).Msg("identity signed in")
	event := domain.IdentityEvent{Type: domain.IdentitySignedIn, Identity: &ident}
	for _, h := range handlers {
		h(event)
	}
	if m.bus != nil {
		m.bus.Publish(ctx, events.IdentityChanged{SignedIn: true, IdentityID: ident.ID})
	}
}

// SignOut clears the current identity and notifies subscribers.
func (m *Memory) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.current = nil
	handlers := m.snapshotSubs()
	m.mu.Unlock()

	m.logger.Info().Msg("identity signed out")
	event := domain.IdentityEvent{Type: domain.IdentitySignedOut}
	for _, h := range handlers {
		h(event)
	}
	if m.bus != nil {
		m.bus.Publish(ctx, events.IdentityChanged{SignedIn: false})
	}
}

// snapshotSubs copies handlers so notification runs outside the lock.
// Callers must hold mu.
func (m *Memory) snapshotSubs() []func(domain.IdentityEvent) {
	handlers := make([]func(domain.IdentityEvent), 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	return handlers
}
