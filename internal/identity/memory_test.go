package identity_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/identity"
)

func TestMemory_CurrentStartsAnonymous(t *testing.T) {
	provider := identity.NewMemory(nil, zerolog.Nop())

	assert.Nil(t, provider.Current(context.Background()))
}

func TestMemory_SignInNotifiesSubscribers(t *testing.T) {
	provider := identity.NewMemory(nil, zerolog.Nop())

	var got []domain.IdentityEvent
	unsubscribe := provider.Subscribe(func(e domain.IdentityEvent) {
		got = append(got, e)
	})
	defer unsubscribe()

	ident := domain.Identity{ID: uuid.New(), DisplayName: "Aoi"}
	provider.SignIn(context.Background(), ident)
	provider.SignOut(context.Background())

	require.Len(t, got, 2)
	assert.Equal(t, domain.IdentitySignedIn, got[0].Type)
	assert.Equal(t, ident.ID, got[0].Identity.ID)
	assert.Equal(t, domain.IdentitySignedOut, got[1].Type)
	assert.Nil(t, got[1].Identity)

	assert.Nil(t, provider.Current(context.Background()))
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	provider := identity.NewMemory(nil, zerolog.Nop())

	calls := 0
	unsubscribe := provider.Subscribe(func(domain.IdentityEvent) { calls++ })
	unsubscribe()

	provider.SignIn(context.Background(), domain.Identity{ID: uuid.New()})

	assert.Zero(t, calls)
}

func TestMemory_MirrorsChangesOntoBus(t *testing.T) {
	bus := events.NewMemoryBus(zerolog.Nop())
	var got []events.IdentityChanged
	bus.Subscribe(events.TypeIdentityChanged, func(ctx context.Context, e events.Event) {
		got = append(got, e.(events.IdentityChanged))
	})

	provider := identity.NewMemory(bus, zerolog.Nop())
	ident := domain.Identity{ID: uuid.New()}
	provider.SignIn(context.Background(), ident)
	provider.SignOut(context.Background())

	require.Len(t, got, 2)
	assert.True(t, got[0].SignedIn)
	assert.Equal(t, ident.ID, got[0].IdentityID)
	assert.False(t, got[1].SignedIn)
}
