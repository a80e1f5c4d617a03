// Package shipping quotes shipping cost for an order. The provider is an
// interface so carrier-rate integrations can replace the flat-rate
// implementation without touching the order engine.
package shipping

import "context"

// Provider defines the interface for shipping cost quotes.
type Provider interface {
	// Quote returns the shipping cost for an order in cents.
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)
}

// QuoteParams contains parameters for quoting shipping.
type QuoteParams struct {
	Destination   Address
	SubtotalCents int64
	ItemCount     int32
}

// Address represents a shipping destination.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Quote is a shipping cost quote.
type Quote struct {
	CostCents   int64
	ServiceName string
}
