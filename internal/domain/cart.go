package domain

import (
	"context"

	"github.com/google/uuid"
)

// Cart-specific errors.
var (
	ErrCartNotFound           = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartLineNotFound       = &Error{Code: ENOTFOUND, Message: "Cart line not found"}
	ErrInvalidQuantity        = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrAuthenticationRequired = &Error{Code: EUNAUTHORIZED, Message: "Sign in to use the cart"}
)

// CartLine is one (identity, item) entry in a cart. At most one line exists
// per item; adding an already-present item increases quantity instead.
type CartLine struct {
	ItemID uuid.UUID
	Name   string
	SKU    string
	// UnitPriceCents is captured at add time, not re-read from the
	// catalog on every render.
	UnitPriceCents int64
	Quantity       int32
	ImageURL       string
}

// CartSnapshot is the authoritative server copy of a cart, stamped with the
// revision that produced it so stale fetches can be discarded client-side.
type CartSnapshot struct {
	IdentityID uuid.UUID
	Lines      []CartLine
	Revision   uint64
}

// Subtotal sums the captured line prices.
func (s CartSnapshot) Subtotal() int64 {
	var total int64
	for _, l := range s.Lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

// ItemCount sums line quantities.
func (s CartSnapshot) ItemCount() int32 {
	var n int32
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// CartBackend is the server-of-record for per-identity carts. The client-side
// cart engine applies mutations optimistically and confirms them here.
type CartBackend interface {
	// Fetch returns the authoritative cart for an identity. A missing
	// cart is an empty snapshot, not an error.
	Fetch(ctx context.Context, identityID uuid.UUID) (*CartSnapshot, error)

	// AddItem merges qty into the identity's line for itemID, capturing
	// the item's current price on first add. Returns the resulting snapshot.
	AddItem(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*CartSnapshot, error)

	// SetQuantity replaces a line's quantity. qty < 1 removes the line.
	SetQuantity(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*CartSnapshot, error)

	// RemoveItem deletes a line.
	RemoveItem(ctx context.Context, identityID, itemID uuid.UUID) (*CartSnapshot, error)

	// Clear deletes every line for the identity.
	Clear(ctx context.Context, identityID uuid.UUID) error
}
