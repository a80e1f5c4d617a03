package domain

import (
	"context"

	"github.com/google/uuid"
)

// Identity is an opaque reference to the acting user or session. Carts and
// orders are always scoped to one.
type Identity struct {
	ID          uuid.UUID
	DisplayName string
}

// IdentityEventType distinguishes identity change notifications.
type IdentityEventType string

const (
	IdentitySignedIn  IdentityEventType = "signedIn"
	IdentitySignedOut IdentityEventType = "signedOut"
)

// IdentityEvent is delivered to subscribers when the current identity changes.
type IdentityEvent struct {
	Type     IdentityEventType
	Identity *Identity // nil for signedOut
}

// IdentityProvider supplies the current identity, or none, and change
// notifications. Token issuance lives outside this system; implementations
// are injected rather than read from a global.
type IdentityProvider interface {
	// Current returns the acting identity, or nil when anonymous.
	Current(ctx context.Context) *Identity

	// Subscribe registers a handler for identity changes and returns an
	// unsubscribe function.
	Subscribe(handler func(IdentityEvent)) (unsubscribe func())
}
