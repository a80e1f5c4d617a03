// Package tax computes order tax. The calculator is an interface so the
// order engine stays decoupled from the rate source; the percentage
// implementation covers a single-jurisdiction store.
package tax

import "context"

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator.
type Calculator interface {
	// CalculateTax computes tax for an order's goods and shipping.
	// Returns the tax amount in cents.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	Destination   Address
	SubtotalCents int64
	ShippingCents int64
}

// Address represents a physical address for tax purposes.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// TaxResult contains the calculated tax amount.
type TaxResult struct {
	TotalTaxCents int64
	Rate          float64
	IsEstimate    bool
}
