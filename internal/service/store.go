// Package service implements the business logic over the persistent stores:
// the category tree with its integrity guarantees, catalog item rules, and
// the order creation and lifecycle engine.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tsubaki/figura/internal/domain"
)

// CategoryStore is the persistence surface the category service needs.
type CategoryStore interface {
	ListAll(ctx context.Context) ([]domain.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	Insert(ctx context.Context, c domain.Category) (*domain.Category, error)
	Update(ctx context.Context, c domain.Category) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ItemStore is the persistence surface the catalog and order services need.
type ItemStore interface {
	List(ctx context.Context, filter domain.ItemFilter, categories []string) ([]domain.Item, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Item, error)
	Insert(ctx context.Context, item domain.Item) (*domain.Item, error)
	Update(ctx context.Context, item domain.Item) (*domain.Item, error)

	// DecrementStock atomically checks and decrements, returning the
	// remaining stock.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (int32, error)
	AddStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.Item, error)

	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementPurchases(ctx context.Context, id uuid.UUID, qty int32) error
	IncrementWishlist(ctx context.Context, id uuid.UUID) error
}

// OrderStore is the persistence surface the order engine needs.
type OrderStore interface {
	Insert(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	GetByClientRequestID(ctx context.Context, requestID string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	ListFlagged(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, shippedAt, deliveredAt *time.Time) (*domain.Order, error)
	FlagReconciliation(ctx context.Context, id uuid.UUID, note string) error
}
