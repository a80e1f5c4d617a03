package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
)

func newTestCatalog(items *mockItemStore, categories categoryResolver, bus events.Bus) *Catalog {
	if categories == nil {
		categories = NewCategories(treeStore(), testLogger())
	}
	if bus == nil {
		bus = events.NewMemoryBus(testLogger())
	}
	return NewCatalog(items, categories, bus, testMetrics(), testLogger())
}

func int64Ptr(v int64) *int64 { return &v }

func TestCatalog_Create_DerivesDiscountAndSlug(t *testing.T) {
	store := &mockItemStore{
		InsertFunc: func(ctx context.Context, item domain.Item) (*domain.Item, error) {
			return &item, nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	created, err := svc.Create(context.Background(), domain.CreateItemParams{
		Name:               "Walnut Desk Organizer",
		SKU:                "WDO-001",
		PriceCents:         7500,
		OriginalPriceCents: int64Ptr(10000),
		Stock:              12,
		Status:             domain.ItemStatusPublished,
	})

	require.NoError(t, err)
	assert.Equal(t, "walnut-desk-organizer", created.Slug)
	assert.Equal(t, int32(25), created.DiscountPercent)
	assert.True(t, created.IsAvailable)
}

func TestCatalog_Create_ZeroStockPublishedBecomesOutOfStock(t *testing.T) {
	store := &mockItemStore{
		InsertFunc: func(ctx context.Context, item domain.Item) (*domain.Item, error) {
			return &item, nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	created, err := svc.Create(context.Background(), domain.CreateItemParams{
		Name:   "Placeholder",
		SKU:    "PH-1",
		Status: domain.ItemStatusPublished,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusOutOfStock, created.Status)
	assert.False(t, created.IsAvailable)
}

func TestCatalog_Create_OriginalPriceBelowPrice(t *testing.T) {
	svc := newTestCatalog(&mockItemStore{}, nil, nil)

	_, err := svc.Create(context.Background(), domain.CreateItemParams{
		Name:               "Bad Deal",
		SKU:                "BD-1",
		PriceCents:         5000,
		OriginalPriceCents: int64Ptr(4000),
	})

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCatalog_GetBySlug_BumpsViews(t *testing.T) {
	itemID := uuid.New()
	var bumped bool
	store := &mockItemStore{
		GetBySlugFunc: func(ctx context.Context, slug string) (*domain.Item, error) {
			return &domain.Item{ID: itemID, Slug: slug, Views: 41}, nil
		},
		IncrementViewsFunc: func(ctx context.Context, id uuid.UUID) error {
			bumped = true
			assert.Equal(t, itemID, id)
			return nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	item, err := svc.GetBySlug(context.Background(), "walnut-desk-organizer")

	require.NoError(t, err)
	assert.True(t, bumped)
	assert.Equal(t, int64(42), item.Views)
}

func TestCatalog_GetBySlug_ViewBumpFailureIsNotFatal(t *testing.T) {
	store := &mockItemStore{
		GetBySlugFunc: func(ctx context.Context, slug string) (*domain.Item, error) {
			return &domain.Item{ID: uuid.New(), Slug: slug}, nil
		},
		IncrementViewsFunc: func(ctx context.Context, id uuid.UUID) error {
			return domain.Internal(nil, "test", "counter write failed")
		},
	}
	svc := newTestCatalog(store, nil, nil)

	_, err := svc.GetBySlug(context.Background(), "anything")

	assert.NoError(t, err)
}

func TestCatalog_List_ExpandsCategoryDescendants(t *testing.T) {
	root, a, b, c := chain()
	categories := NewCategories(treeStore(root, a, b, c), testLogger())

	var gotNames []string
	store := &mockItemStore{
		ListFunc: func(ctx context.Context, filter domain.ItemFilter, names []string) ([]domain.Item, error) {
			gotNames = names
			return []domain.Item{}, nil
		},
	}
	svc := newTestCatalog(store, categories, nil)

	slug := root.Slug
	_, err := svc.List(context.Background(), domain.ItemFilter{Category: &slug})

	require.NoError(t, err)
	assert.Equal(t, []string{"Root", "A", "B", "C"}, gotNames)
}

func TestCatalog_List_UnknownCategoryMatchesNothing(t *testing.T) {
	store := &mockItemStore{
		ListFunc: func(ctx context.Context, filter domain.ItemFilter, names []string) ([]domain.Item, error) {
			t.Fatal("store should not be queried for an unknown category")
			return nil, nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	slug := "no-such-category"
	items, err := svc.List(context.Background(), domain.ItemFilter{Category: &slug})

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCatalog_DecrementStock_PublishesDepletion(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		DecrementStockFunc: func(ctx context.Context, id uuid.UUID, qty int32) (int32, error) {
			return 0, nil
		},
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
			return &domain.Item{ID: itemID, SKU: "LAST-1"}, nil
		},
	}

	bus := events.NewMemoryBus(testLogger())
	depleted := make(chan events.StockDepleted, 1)
	bus.Subscribe(events.TypeStockDepleted, func(ctx context.Context, e events.Event) {
		depleted <- e.(events.StockDepleted)
	})

	svc := newTestCatalog(store, nil, bus)

	err := svc.DecrementStock(context.Background(), itemID, 3)

	require.NoError(t, err)
	select {
	case e := <-depleted:
		assert.Equal(t, itemID, e.ItemID)
		assert.Equal(t, "LAST-1", e.SKU)
	default:
		t.Fatal("expected a stock depleted event")
	}
}

func TestCatalog_DecrementStock_InvalidQuantity(t *testing.T) {
	svc := newTestCatalog(&mockItemStore{}, nil, nil)

	err := svc.DecrementStock(context.Background(), uuid.New(), 0)

	assert.Equal(t, domain.ErrInvalidQuantity, err)
}

func TestCatalog_Update_RecomputesDerivedFields(t *testing.T) {
	itemID := uuid.New()
	store := &mockItemStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
			return &domain.Item{
				ID:          itemID,
				Name:        "Lamp",
				PriceCents:  3000,
				Stock:       0,
				Status:      domain.ItemStatusOutOfStock,
				IsAvailable: false,
			}, nil
		},
		UpdateFunc: func(ctx context.Context, item domain.Item) (*domain.Item, error) {
			return &item, nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	stock := int32(5)
	updated, err := svc.Update(context.Background(), itemID, domain.UpdateItemParams{
		Stock:              &stock,
		OriginalPriceCents: int64Ptr(4000),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusPublished, updated.Status)
	assert.True(t, updated.IsAvailable)
	assert.Equal(t, int32(25), updated.DiscountPercent)
}

func TestCatalog_Delete_Archives(t *testing.T) {
	itemID := uuid.New()
	var saved domain.Item
	store := &mockItemStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
			return &domain.Item{ID: itemID, Status: domain.ItemStatusPublished, IsAvailable: true}, nil
		},
		UpdateFunc: func(ctx context.Context, item domain.Item) (*domain.Item, error) {
			saved = item
			return &item, nil
		},
	}
	svc := newTestCatalog(store, nil, nil)

	err := svc.Delete(context.Background(), itemID)

	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusArchived, saved.Status)
	assert.False(t, saved.IsAvailable)
}
