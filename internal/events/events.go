// Package events provides the in-process publish/subscribe bus used to tell
// independent surfaces "cart changed" / "identity changed" without direct
// coupling. Payloads are typed; the Bus interface is decoupled from any
// transport, with an in-memory implementation for a single process and a
// NATS-backed one for cross-process consumers.
package events

import (
	"context"

	"github.com/google/uuid"
)

// Type names an event stream on the bus.
type Type string

const (
	TypeCartChanged     Type = "cart_changed"
	TypeIdentityChanged Type = "identity_changed"
	TypeOrderCreated    Type = "order_created"
	TypeStockDepleted   Type = "stock_depleted"
)

// Event is a typed bus payload.
type Event interface {
	EventType() Type
}

// CartChanged is published on every successful optimistic cart mutation, not
// just server confirmation, so surfaces like a cart-count badge update
// without polling.
type CartChanged struct {
	IdentityID uuid.UUID `json:"identity_id"`
	ItemCount  int32     `json:"item_count"`
	Revision   uint64    `json:"revision"`
}

func (CartChanged) EventType() Type { return TypeCartChanged }

// IdentityChanged mirrors the identity bridge notifications onto the bus.
type IdentityChanged struct {
	SignedIn   bool      `json:"signed_in"`
	IdentityID uuid.UUID `json:"identity_id,omitempty"`
}

func (IdentityChanged) EventType() Type { return TypeIdentityChanged }

// OrderCreated is published after an order is durably persisted.
type OrderCreated struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	IdentityID  uuid.UUID `json:"identity_id"`
	TotalCents  int64     `json:"total_cents"`
}

func (OrderCreated) EventType() Type { return TypeOrderCreated }

// StockDepleted is published when a decrement drives an item's stock to zero.
type StockDepleted struct {
	ItemID uuid.UUID `json:"item_id"`
	SKU    string    `json:"sku"`
}

func (StockDepleted) EventType() Type { return TypeStockDepleted }

// Handler receives events of the subscribed type.
type Handler func(ctx context.Context, event Event)

// Bus is the publish/subscribe channel shared across components.
type Bus interface {
	// Publish delivers an event to every subscriber of its type.
	// Publishing never blocks the caller on slow subscribers.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler for one event type and returns an
	// unsubscribe function.
	Subscribe(t Type, h Handler) (unsubscribe func())

	// Close releases transport resources. The in-memory bus is a no-op.
	Close() error
}
