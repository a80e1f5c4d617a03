package shipping

import "context"

// MockProvider is a test implementation of Provider.
type MockProvider struct {
	QuoteFunc func(ctx context.Context, params QuoteParams) (*Quote, error)
}

// Quote delegates to the configured function or returns free shipping.
func (m *MockProvider) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, params)
	}
	return &Quote{CostCents: 0, ServiceName: "Mock Shipping"}, nil
}
