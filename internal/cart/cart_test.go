package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/identity"
	"github.com/tsubaki/figura/internal/telemetry"
)

// fakeBackend is an in-memory server-of-record with per-identity revisions,
// plus switches for failure injection.
type fakeBackend struct {
	mu        sync.Mutex
	carts     map[uuid.UUID][]domain.CartLine
	revisions map[uuid.UUID]uint64
	items     map[uuid.UUID]domain.Item

	failMutations bool
	failFetch     bool
	clearCalls    int
}

func newFakeBackend(items ...domain.Item) *fakeBackend {
	b := &fakeBackend{
		carts:     make(map[uuid.UUID][]domain.CartLine),
		revisions: make(map[uuid.UUID]uint64),
		items:     make(map[uuid.UUID]domain.Item),
	}
	for _, item := range items {
		b.items[item.ID] = item
	}
	return b
}

func (b *fakeBackend) snapshot(identityID uuid.UUID) *domain.CartSnapshot {
	lines := make([]domain.CartLine, len(b.carts[identityID]))
	copy(lines, b.carts[identityID])
	return &domain.CartSnapshot{
		IdentityID: identityID,
		Lines:      lines,
		Revision:   b.revisions[identityID],
	}
}

func (b *fakeBackend) Fetch(ctx context.Context, identityID uuid.UUID) (*domain.CartSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failFetch {
		return nil, domain.Internal(nil, "fake.fetch", "backend offline")
	}
	return b.snapshot(identityID), nil
}

func (b *fakeBackend) AddItem(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*domain.CartSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMutations {
		return nil, domain.ErrItemUnavailable
	}
	item, ok := b.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	lines := b.carts[identityID]
	merged := false
	for i := range lines {
		if lines[i].ItemID == itemID {
			lines[i].Quantity += qty
			merged = true
		}
	}
	if !merged {
		lines = append(lines, domain.CartLine{
			ItemID:         itemID,
			Name:           item.Name,
			SKU:            item.SKU,
			UnitPriceCents: item.PriceCents,
			Quantity:       qty,
		})
	}
	b.carts[identityID] = lines
	b.revisions[identityID]++
	return b.snapshot(identityID), nil
}

func (b *fakeBackend) SetQuantity(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*domain.CartSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMutations {
		return nil, domain.ErrItemUnavailable
	}
	if qty < 1 {
		return b.removeLocked(identityID, itemID), nil
	}
	for i := range b.carts[identityID] {
		if b.carts[identityID][i].ItemID == itemID {
			b.carts[identityID][i].Quantity = qty
		}
	}
	b.revisions[identityID]++
	return b.snapshot(identityID), nil
}

func (b *fakeBackend) RemoveItem(ctx context.Context, identityID, itemID uuid.UUID) (*domain.CartSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMutations {
		return nil, domain.ErrItemUnavailable
	}
	return b.removeLocked(identityID, itemID), nil
}

func (b *fakeBackend) removeLocked(identityID, itemID uuid.UUID) *domain.CartSnapshot {
	lines := b.carts[identityID][:0]
	for _, l := range b.carts[identityID] {
		if l.ItemID != itemID {
			lines = append(lines, l)
		}
	}
	b.carts[identityID] = lines
	b.revisions[identityID]++
	return b.snapshot(identityID)
}

func (b *fakeBackend) Clear(ctx context.Context, identityID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearCalls++
	b.carts[identityID] = nil
	b.revisions[identityID]++
	return nil
}

var _ domain.CartBackend = (*fakeBackend)(nil)

func testItem(name string, priceCents int64) domain.Item {
	return domain.Item{ID: uuid.New(), Name: name, SKU: name, PriceCents: priceCents}
}

type fixture struct {
	store    *Store
	backend  *fakeBackend
	provider *identity.Memory
	bus      *events.MemoryBus
}

func newFixture(t *testing.T, items ...domain.Item) *fixture {
	t.Helper()
	backend := newFakeBackend(items...)
	bus := events.NewMemoryBus(zerolog.Nop())
	provider := identity.NewMemory(bus, zerolog.Nop())
	metrics := telemetry.NewBusinessMetrics(prometheus.NewRegistry())
	store := New(backend, provider, bus, metrics, time.Second, zerolog.Nop())
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Close)
	return &fixture{store: store, backend: backend, provider: provider, bus: bus}
}

func (f *fixture) signIn() domain.Identity {
	ident := domain.Identity{ID: uuid.New(), DisplayName: "Tester"}
	f.provider.SignIn(context.Background(), ident)
	return ident
}

func TestStore_AddItem_RequiresIdentity(t *testing.T) {
	f := newFixture(t)

	err := f.store.AddItem(context.Background(), testItem("figurine", 2500), 1)

	assert.Equal(t, domain.ErrAuthenticationRequired, err)
	assert.Equal(t, Uninitialized, f.store.State())
}

func TestStore_AddItem_MergesQuantities(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	f.signIn()

	require.NoError(t, f.store.AddItem(context.Background(), item, 2))
	require.NoError(t, f.store.AddItem(context.Background(), item, 3))

	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1, "same item must merge into one line")
	assert.Equal(t, int32(5), snap.Lines[0].Quantity)
	assert.Equal(t, int64(12500), snap.Subtotal())
}

func TestStore_AddItem_RollsBackOnRejection(t *testing.T) {
	itemA := testItem("figurine", 2500)
	itemB := testItem("stand", 800)
	f := newFixture(t, itemA, itemB)
	f.signIn()

	require.NoError(t, f.store.AddItem(context.Background(), itemA, 1))
	confirmed := f.store.Snapshot()

	f.backend.mu.Lock()
	f.backend.failMutations = true
	f.backend.mu.Unlock()

	err := f.store.AddItem(context.Background(), itemB, 1)

	require.Error(t, err)
	assert.Equal(t, domain.ErrItemUnavailable, err)
	snap := f.store.Snapshot()
	assert.Equal(t, confirmed.Lines, snap.Lines, "rejected mutation must restore the confirmed snapshot")
}

func TestStore_SetQuantity_ZeroRemoves(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	f.signIn()
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	require.NoError(t, f.store.SetQuantity(context.Background(), item.ID, 0))

	assert.Empty(t, f.store.Snapshot().Lines)
}

func TestStore_RemoveItem_RestoresLineOnFailure(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	f.signIn()
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	f.backend.mu.Lock()
	f.backend.failMutations = true
	f.backend.mu.Unlock()

	err := f.store.RemoveItem(context.Background(), item.ID)

	require.Error(t, err)
	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(2), snap.Lines[0].Quantity)
}

func TestStore_Reconcile_DiscardsStaleSnapshot(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	ident := f.signIn()

	require.NoError(t, f.store.AddItem(context.Background(), item, 2))
	current := f.store.Snapshot()

	// a fetch that raced the mutation: older revision, older contents
	stale := &domain.CartSnapshot{
		IdentityID: ident.ID,
		Lines:      nil,
		Revision:   current.Revision - 1,
	}
	f.backend.mu.Lock()
	f.backend.carts[ident.ID] = stale.Lines
	f.backend.revisions[ident.ID] = stale.Revision
	f.backend.mu.Unlock()

	require.NoError(t, f.store.Reconcile(context.Background()))

	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1, "stale reconciliation must not overwrite confirmed state")
	assert.Equal(t, current.Revision, snap.Revision)
}

func TestStore_Reconcile_AdoptsNewerSnapshot(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	ident := f.signIn()

	// another tab added to the server cart
	_, err := f.backend.AddItem(context.Background(), ident.ID, item.ID, 4)
	require.NoError(t, err)

	require.NoError(t, f.store.Reconcile(context.Background()))

	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(4), snap.Lines[0].Quantity)
}

func TestStore_SignOut_DiscardsLocalState(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	f.signIn()
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	f.provider.SignOut(context.Background())

	assert.Equal(t, Uninitialized, f.store.State())
	assert.Empty(t, f.store.Snapshot().Lines)
}

func TestStore_SignIn_ServerCartWins(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)

	// the identity's server cart already holds 3 from a previous session
	returning := domain.Identity{ID: uuid.New(), DisplayName: "Returning"}
	_, err := f.backend.AddItem(context.Background(), returning.ID, item.ID, 3)
	require.NoError(t, err)

	f.provider.SignIn(context.Background(), returning)

	assert.Equal(t, Ready, f.store.State())
	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(3), snap.Lines[0].Quantity)
}

func TestStore_LogoutLoginRoundTrip(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	ident := f.signIn()
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	f.provider.SignOut(context.Background())
	assert.Empty(t, f.store.Snapshot().Lines)

	f.provider.SignIn(context.Background(), ident)

	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1, "server cart must be restored on sign-in")
	assert.Equal(t, int32(2), snap.Lines[0].Quantity)
}

func TestStore_QueuedMutationsDrainAfterSync(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)

	f.backend.mu.Lock()
	f.backend.failFetch = true
	f.backend.mu.Unlock()

	ident := domain.Identity{ID: uuid.New()}
	f.provider.SignIn(context.Background(), ident)
	assert.Equal(t, Syncing, f.store.State())

	// queued, not applied
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))
	assert.Empty(t, f.store.Snapshot().Lines)

	f.backend.mu.Lock()
	f.backend.failFetch = false
	f.backend.mu.Unlock()

	require.NoError(t, f.store.Reconcile(context.Background()))

	assert.Equal(t, Ready, f.store.State())
	snap := f.store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(2), snap.Lines[0].Quantity)
}

func TestStore_Clear_LocalInstantServerFireAndForget(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	ident := f.signIn()
	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	require.NoError(t, f.store.Clear(context.Background()))

	assert.Empty(t, f.store.Snapshot().Lines, "local clear is instantaneous")

	assert.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return f.backend.clearCalls == 1 && len(f.backend.carts[ident.ID]) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStore_PublishesCartChangedOnOptimisticApply(t *testing.T) {
	item := testItem("figurine", 2500)
	f := newFixture(t, item)
	f.signIn()

	var mu sync.Mutex
	var seen []events.CartChanged
	f.bus.Subscribe(events.TypeCartChanged, func(ctx context.Context, e events.Event) {
		mu.Lock()
		seen = append(seen, e.(events.CartChanged))
		mu.Unlock()
	})

	require.NoError(t, f.store.AddItem(context.Background(), item, 2))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, int32(2), seen[0].ItemCount)
}
