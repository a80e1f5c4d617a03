package tax

import "context"

// MockCalculator is a test implementation of Calculator.
type MockCalculator struct {
	CalculateTaxFunc func(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// CalculateTax delegates to the configured function or returns zero tax.
func (m *MockCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if m.CalculateTaxFunc != nil {
		return m.CalculateTaxFunc(ctx, params)
	}
	return &TaxResult{TotalTaxCents: 0}, nil
}
