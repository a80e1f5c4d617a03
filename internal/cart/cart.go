// Package cart implements the client-resident optimistic cart engine. The
// engine keeps a local copy of one identity's cart, applies mutations
// immediately for display, confirms each against the server-of-record
// (domain.CartBackend), and rolls back to the last confirmed snapshot when
// the server rejects or times out. A revision counter keeps stale
// reconciliation fetches from overwriting newer confirmed state.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/telemetry"
)

// State is the engine's lifecycle per identity.
type State int

const (
	// Uninitialized means no identity is present; the cart is unusable.
	Uninitialized State = iota
	// Syncing means the first server fetch after sign-in is in flight;
	// mutations are queued, not applied.
	Syncing
	// Ready means the local copy tracks a confirmed server snapshot.
	Ready
)

func (s State) String() string {
	switch s {
	case Syncing:
		return "syncing"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// DefaultTimeout bounds every server round trip when no timeout is given.
const DefaultTimeout = 5 * time.Second

// Store is the per-session cart engine. Mutations are serialized; the lock
// is held across the server confirmation so a rollback always restores the
// exact pre-mutation snapshot. Reconciliation fetches run outside the lock
// and are staleness-checked at apply time.
type Store struct {
	backend  domain.CartBackend
	identity domain.IdentityProvider
	bus      events.Bus
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
	timeout  time.Duration

	mu          sync.Mutex
	state       State
	identityID  uuid.UUID
	lines       []domain.CartLine
	confirmed   *domain.CartSnapshot
	localRev    uint64
	queued      []func(ctx context.Context)
	unsubscribe func()
}

// New creates a cart engine. Call Start to pick up the current identity and
// begin reacting to identity changes.
func New(backend domain.CartBackend, provider domain.IdentityProvider, bus events.Bus, metrics *telemetry.BusinessMetrics, timeout time.Duration, logger zerolog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		backend:  backend,
		identity: provider,
		bus:      bus,
		metrics:  metrics,
		logger:   logger.With().Str("component", "cart").Logger(),
		timeout:  timeout,
	}
}

// Start subscribes to identity changes and syncs against the server when an
// identity is already present.
func (s *Store) Start(ctx context.Context) error {
	s.unsubscribe = s.identity.Subscribe(func(event domain.IdentityEvent) {
		switch event.Type {
		case domain.IdentitySignedIn:
			s.handleSignIn(context.Background(), *event.Identity)
		case domain.IdentitySignedOut:
			s.handleSignOut()
		}
	})

	if ident := s.identity.Current(ctx); ident != nil {
		s.handleSignIn(ctx, *ident)
	}
	return nil
}

// Close detaches the engine from identity notifications.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// State reports the engine's current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current local view. The revision is the server
// revision of the last confirmed snapshot.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.CartSnapshot{
		IdentityID: s.identityID,
		Lines:      copyLines(s.lines),
	}
	if s.confirmed != nil {
		snap.Revision = s.confirmed.Revision
	}
	return snap
}

// AddItem merges qty of item into the cart: an existing line's quantity
// grows, a new line is appended. The optimistic line is built from the
// passed item so the display updates before the server answers.
func (s *Store) AddItem(ctx context.Context, item domain.Item, qty int32) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, "add",
		func(lines []domain.CartLine) []domain.CartLine {
			for i := range lines {
				if lines[i].ItemID == item.ID {
					lines[i].Quantity += qty
					return lines
				}
			}
			return append(lines, domain.CartLine{
				ItemID:         item.ID,
				Name:           item.Name,
				SKU:            item.SKU,
				UnitPriceCents: item.PriceCents,
				Quantity:       qty,
				ImageURL:       item.ImageURL,
			})
		},
		func(ctx context.Context, identityID uuid.UUID) (*domain.CartSnapshot, error) {
			return s.backend.AddItem(ctx, identityID, item.ID, qty)
		},
	)
}

// SetQuantity replaces a line's quantity. qty < 1 removes the line.
func (s *Store) SetQuantity(ctx context.Context, itemID uuid.UUID, qty int32) error {
	if qty < 1 {
		return s.RemoveItem(ctx, itemID)
	}
	return s.mutate(ctx, "set_quantity",
		func(lines []domain.CartLine) []domain.CartLine {
			for i := range lines {
				if lines[i].ItemID == itemID {
					lines[i].Quantity = qty
				}
			}
			return lines
		},
		func(ctx context.Context, identityID uuid.UUID) (*domain.CartSnapshot, error) {
			return s.backend.SetQuantity(ctx, identityID, itemID, qty)
		},
	)
}

// RemoveItem deletes a line; a failed confirmation restores it from the last
// confirmed snapshot.
func (s *Store) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return s.mutate(ctx, "remove",
		func(lines []domain.CartLine) []domain.CartLine {
			out := lines[:0]
			for _, l := range lines {
				if l.ItemID != itemID {
					out = append(out, l)
				}
			}
			return out
		},
		func(ctx context.Context, identityID uuid.UUID) (*domain.CartSnapshot, error) {
			return s.backend.RemoveItem(ctx, identityID, itemID)
		},
	)
}

// mutate runs one optimistic mutation: local apply, cart-changed publish,
// server confirm, and either confirmed-snapshot adoption or rollback.
// While the engine is not Ready the mutation is queued for execution after
// the sign-in sync completes.
func (s *Store) mutate(ctx context.Context, op string, apply func([]domain.CartLine) []domain.CartLine, confirm func(context.Context, uuid.UUID) (*domain.CartSnapshot, error)) error {
	s.mu.Lock()

	if s.identityID == uuid.Nil {
		s.mu.Unlock()
		return domain.ErrAuthenticationRequired
	}
	if s.state != Ready {
		s.queued = append(s.queued, func(ctx context.Context) {
			if err := s.mutate(ctx, op, apply, confirm); err != nil {
				s.logger.Warn().Err(err).Str("op", op).Msg("queued cart mutation failed")
			}
		})
		s.mu.Unlock()
		return nil
	}

	identityID := s.identityID

	// optimistic apply
	s.lines = apply(s.lines)
	s.localRev++
	s.publishChangedLocked(ctx)
	s.metrics.CartMutations.WithLabelValues(op).Inc()

	confirmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	snap, err := confirm(confirmCtx, identityID)
	cancel()

	if err != nil {
		// rollback to the last confirmed snapshot and surface the error
		if s.confirmed != nil {
			s.lines = copyLines(s.confirmed.Lines)
		} else {
			s.lines = nil
		}
		s.localRev++
		s.publishChangedLocked(ctx)
		s.metrics.CartMutations.WithLabelValues("rollback").Inc()
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("op", op).Msg("cart mutation rejected, rolled back")
		return err
	}

	s.adoptLocked(snap)
	s.metrics.CartValue.Observe(float64(snap.Subtotal()))
	s.mu.Unlock()
	return nil
}

// Reconcile fetches the authoritative server cart and replaces the local
// copy wholesale. A snapshot older than the last confirmed revision is
// discarded: it raced a mutation that has already been confirmed.
func (s *Store) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	identityID := s.identityID
	s.mu.Unlock()

	if identityID == uuid.Nil {
		return domain.ErrAuthenticationRequired
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	snap, err := s.backend.Fetch(fetchCtx, identityID)
	cancel()
	if err != nil {
		return err
	}

	s.mu.Lock()

	if s.identityID != identityID {
		// identity changed while the fetch was in flight
		s.mu.Unlock()
		return nil
	}
	if s.confirmed != nil && snap.Revision < s.confirmed.Revision {
		s.logger.Debug().
			Uint64("snapshot_revision", snap.Revision).
			Uint64("confirmed_revision", s.confirmed.Revision).
			Msg("discarding stale cart reconciliation")
		s.mu.Unlock()
		return nil
	}

	becameReady := s.state != Ready
	s.adoptLocked(snap)
	s.state = Ready
	s.publishChangedLocked(ctx)
	s.mu.Unlock()

	if becameReady {
		s.drainQueue(ctx)
	}
	return nil
}

// Clear empties the cart locally at once; the server-side clear is
// fire-and-forget because clearing follows a successful order creation
// where staleness is low-risk.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()

	if s.identityID == uuid.Nil {
		s.mu.Unlock()
		return domain.ErrAuthenticationRequired
	}
	identityID := s.identityID
	s.lines = nil
	if s.confirmed != nil {
		s.confirmed.Lines = nil
	}
	s.localRev++
	s.publishChangedLocked(ctx)
	s.metrics.CartMutations.WithLabelValues("clear").Inc()
	s.mu.Unlock()

	go func() {
		clearCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.backend.Clear(clearCtx, identityID); err != nil {
			s.logger.Warn().Err(err).Str("identity_id", identityID.String()).Msg("server-side cart clear failed")
		}
	}()
	return nil
}

// handleSignIn adopts the new identity and reconciles against the server;
// the server cart wins over anything held locally. Queued mutations drain
// once the sync completes.
func (s *Store) handleSignIn(ctx context.Context, ident domain.Identity) {
	s.mu.Lock()
	s.identityID = ident.ID
	s.state = Syncing
	s.lines = nil
	s.confirmed = nil
	s.mu.Unlock()

	if err := s.Reconcile(ctx); err != nil {
		s.logger.Error().Err(err).Str("identity_id", ident.ID.String()).Msg("initial cart sync failed")
		// stay in Syncing; the next successful reconcile completes the
		// sync and drains anything queued meanwhile
	}
}

// handleSignOut discards all local state without contacting the server.
func (s *Store) handleSignOut() {
	s.mu.Lock()
	s.identityID = uuid.Nil
	s.state = Uninitialized
	s.lines = nil
	s.confirmed = nil
	s.queued = nil
	s.mu.Unlock()
}

func (s *Store) drainQueue(ctx context.Context) {
	s.mu.Lock()
	queued := s.queued
	s.queued = nil
	s.mu.Unlock()

	for _, run := range queued {
		run(ctx)
	}
}

// adoptLocked installs a server snapshot as the confirmed state.
// Callers must hold mu.
func (s *Store) adoptLocked(snap *domain.CartSnapshot) {
	s.confirmed = snap
	s.lines = copyLines(snap.Lines)
}

// publishChangedLocked announces the current local view on the bus.
// Callers must hold mu; the memory bus delivers synchronously, so handlers
// must not call back into the store.
func (s *Store) publishChangedLocked(ctx context.Context) {
	var count int32
	for _, l := range s.lines {
		count += l.Quantity
	}
	s.bus.Publish(ctx, events.CartChanged{
		IdentityID: s.identityID,
		ItemCount:  count,
		Revision:   s.localRev,
	})
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
