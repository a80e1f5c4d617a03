package tax

import (
	"context"
	"math"
)

// PercentageCalculator calculates tax using a single flat rate applied to
// goods plus shipping.
type PercentageCalculator struct {
	rate float64
}

// NewPercentageCalculator creates a percentage-based tax calculator.
// rate is fractional, e.g. 0.08 for 8%.
func NewPercentageCalculator(rate float64) Calculator {
	return &PercentageCalculator{rate: rate}
}

// CalculateTax computes tax on subtotal + shipping using the configured rate.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	taxable := params.SubtotalCents + params.ShippingCents
	return &TaxResult{
		TotalTaxCents: int64(math.Round(float64(taxable) * c.rate)),
		Rate:          c.rate,
		IsEstimate:    false,
	}, nil
}
