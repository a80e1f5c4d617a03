package shipping

import "context"

// FlatRateProvider charges a fixed rate per order, waived above a
// free-shipping threshold. threshold <= 0 disables the waiver.
type FlatRateProvider struct {
	costCents      int64
	thresholdCents int64
}

// NewFlatRateProvider creates a flat-rate shipping provider.
func NewFlatRateProvider(costCents, freeThresholdCents int64) Provider {
	return &FlatRateProvider{costCents: costCents, thresholdCents: freeThresholdCents}
}

// Quote returns the flat rate, or zero when the subtotal clears the
// free-shipping threshold.
func (p *FlatRateProvider) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if p.thresholdCents > 0 && params.SubtotalCents >= p.thresholdCents {
		return &Quote{CostCents: 0, ServiceName: "Free Shipping"}, nil
	}
	return &Quote{CostCents: p.costCents, ServiceName: "Standard Shipping"}, nil
}
