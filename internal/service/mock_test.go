package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/telemetry"
)

// mockCategoryStore is a Func-field test double for CategoryStore.
type mockCategoryStore struct {
	ListAllFunc   func(ctx context.Context) ([]domain.Category, error)
	GetByIDFunc   func(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	GetBySlugFunc func(ctx context.Context, slug string) (*domain.Category, error)
	InsertFunc    func(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpdateFunc    func(ctx context.Context, c domain.Category) (*domain.Category, error)
	DeleteFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCategoryStore) ListAll(ctx context.Context) ([]domain.Category, error) {
	return m.ListAllFunc(ctx)
}

func (m *mockCategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockCategoryStore) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return m.GetBySlugFunc(ctx, slug)
}

func (m *mockCategoryStore) Insert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	return m.InsertFunc(ctx, c)
}

func (m *mockCategoryStore) Update(ctx context.Context, c domain.Category) (*domain.Category, error) {
	return m.UpdateFunc(ctx, c)
}

func (m *mockCategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.DeleteFunc(ctx, id)
}

// treeStore builds a mockCategoryStore serving a static category snapshot,
// the common fixture for traversal tests.
func treeStore(cats ...domain.Category) *mockCategoryStore {
	lookup := func(id uuid.UUID) (*domain.Category, error) {
		for _, c := range cats {
			if c.ID == id {
				copied := c
				return &copied, nil
			}
		}
		return nil, domain.ErrCategoryNotFound
	}
	return &mockCategoryStore{
		ListAllFunc: func(ctx context.Context) ([]domain.Category, error) {
			return cats, nil
		},
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
			return lookup(id)
		},
		GetBySlugFunc: func(ctx context.Context, slug string) (*domain.Category, error) {
			for _, c := range cats {
				if c.Slug == slug {
					copied := c
					return &copied, nil
				}
			}
			return nil, domain.ErrCategoryNotFound
		},
	}
}

// mockItemStore is a Func-field test double for ItemStore.
type mockItemStore struct {
	ListFunc               func(ctx context.Context, filter domain.ItemFilter, categories []string) ([]domain.Item, error)
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetBySlugFunc          func(ctx context.Context, slug string) (*domain.Item, error)
	InsertFunc             func(ctx context.Context, item domain.Item) (*domain.Item, error)
	UpdateFunc             func(ctx context.Context, item domain.Item) (*domain.Item, error)
	DecrementStockFunc     func(ctx context.Context, id uuid.UUID, qty int32) (int32, error)
	AddStockFunc           func(ctx context.Context, id uuid.UUID, qty int32) (*domain.Item, error)
	IncrementViewsFunc     func(ctx context.Context, id uuid.UUID) error
	IncrementPurchasesFunc func(ctx context.Context, id uuid.UUID, qty int32) error
	IncrementWishlistFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockItemStore) List(ctx context.Context, filter domain.ItemFilter, categories []string) ([]domain.Item, error) {
	return m.ListFunc(ctx, filter, categories)
}

func (m *mockItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockItemStore) GetBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	return m.GetBySlugFunc(ctx, slug)
}

func (m *mockItemStore) Insert(ctx context.Context, item domain.Item) (*domain.Item, error) {
	return m.InsertFunc(ctx, item)
}

func (m *mockItemStore) Update(ctx context.Context, item domain.Item) (*domain.Item, error) {
	return m.UpdateFunc(ctx, item)
}

func (m *mockItemStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (int32, error) {
	return m.DecrementStockFunc(ctx, id, qty)
}

func (m *mockItemStore) AddStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.Item, error) {
	return m.AddStockFunc(ctx, id, qty)
}

func (m *mockItemStore) IncrementViews(ctx context.Context, id uuid.UUID) error {
	if m.IncrementViewsFunc != nil {
		return m.IncrementViewsFunc(ctx, id)
	}
	return nil
}

func (m *mockItemStore) IncrementPurchases(ctx context.Context, id uuid.UUID, qty int32) error {
	if m.IncrementPurchasesFunc != nil {
		return m.IncrementPurchasesFunc(ctx, id, qty)
	}
	return nil
}

func (m *mockItemStore) IncrementWishlist(ctx context.Context, id uuid.UUID) error {
	if m.IncrementWishlistFunc != nil {
		return m.IncrementWishlistFunc(ctx, id)
	}
	return nil
}

// mockOrderStore is a Func-field test double for OrderStore.
type mockOrderStore struct {
	InsertFunc               func(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByNumberFunc          func(ctx context.Context, number string) (*domain.Order, error)
	GetByClientRequestIDFunc func(ctx context.Context, requestID string) (*domain.Order, error)
	ListFunc                 func(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	ListFlaggedFunc          func(ctx context.Context) ([]domain.Order, error)
	UpdateStatusFunc         func(ctx context.Context, id uuid.UUID, status domain.OrderStatus, shippedAt, deliveredAt *time.Time) (*domain.Order, error)
	FlagReconciliationFunc   func(ctx context.Context, id uuid.UUID, note string) error
}

func (m *mockOrderStore) Insert(ctx context.Context, order domain.Order) (*domain.Order, error) {
	return m.InsertFunc(ctx, order)
}

func (m *mockOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockOrderStore) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return m.GetByNumberFunc(ctx, number)
}

func (m *mockOrderStore) GetByClientRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	if m.GetByClientRequestIDFunc != nil {
		return m.GetByClientRequestIDFunc(ctx, requestID)
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return m.ListFunc(ctx, filter)
}

func (m *mockOrderStore) ListFlagged(ctx context.Context) ([]domain.Order, error) {
	return m.ListFlaggedFunc(ctx)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, shippedAt, deliveredAt *time.Time) (*domain.Order, error) {
	return m.UpdateStatusFunc(ctx, id, status, shippedAt, deliveredAt)
}

func (m *mockOrderStore) FlagReconciliation(ctx context.Context, id uuid.UUID, note string) error {
	if m.FlagReconciliationFunc != nil {
		return m.FlagReconciliationFunc(ctx, id, note)
	}
	return nil
}

// testMetrics returns a metrics set bound to a throwaway registry so tests
// never collide on the default registerer.
func testMetrics() *telemetry.BusinessMetrics {
	return telemetry.NewBusinessMetrics(prometheus.NewRegistry())
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
