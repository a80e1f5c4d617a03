package events

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *MemoryBus {
	return NewMemoryBus(zerolog.Nop())
}

func TestMemoryBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := newTestBus()

	var got []Event
	bus.Subscribe(TypeCartChanged, func(_ context.Context, e Event) {
		got = append(got, e)
	})

	id := uuid.New()
	bus.Publish(context.Background(), CartChanged{IdentityID: id, ItemCount: 3, Revision: 7})

	require.Len(t, got, 1)
	e, ok := got[0].(CartChanged)
	require.True(t, ok)
	assert.Equal(t, id, e.IdentityID)
	assert.Equal(t, int32(3), e.ItemCount)
	assert.Equal(t, uint64(7), e.Revision)
}

func TestMemoryBus_TypeIsolation(t *testing.T) {
	bus := newTestBus()

	var cartEvents, orderEvents int
	bus.Subscribe(TypeCartChanged, func(context.Context, Event) { cartEvents++ })
	bus.Subscribe(TypeOrderCreated, func(context.Context, Event) { orderEvents++ })

	bus.Publish(context.Background(), CartChanged{})
	bus.Publish(context.Background(), CartChanged{})
	bus.Publish(context.Background(), OrderCreated{})

	assert.Equal(t, 2, cartEvents)
	assert.Equal(t, 1, orderEvents)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	var count int
	unsub := bus.Subscribe(TypeStockDepleted, func(context.Context, Event) { count++ })

	bus.Publish(context.Background(), StockDepleted{})
	unsub()
	bus.Publish(context.Background(), StockDepleted{})

	assert.Equal(t, 1, count)
}

func TestMemoryBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := newTestBus()

	var delivered bool
	bus.Subscribe(TypeOrderCreated, func(context.Context, Event) { panic("bad subscriber") })
	bus.Subscribe(TypeOrderCreated, func(context.Context, Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), OrderCreated{})
	})
	assert.True(t, delivered)
}

func TestMemoryBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var count int
	bus.Subscribe(TypeCartChanged, func(context.Context, Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), CartChanged{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
