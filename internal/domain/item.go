package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// Item-specific errors.
var (
	ErrItemNotFound      = &Error{Code: ENOTFOUND, Message: "Item not found"}
	ErrDuplicateSlug     = &Error{Code: ECONFLICT, Message: "Item slug already exists"}
	ErrDuplicateSKU      = &Error{Code: ECONFLICT, Message: "SKU already exists"}
	ErrNegativeStock     = &Error{Code: EINVALID, Message: "Stock cannot be negative"}
	ErrInsufficientStock = &Error{Code: ECONFLICT, Message: "Insufficient stock"}
	ErrItemUnavailable   = &Error{Code: ECONFLICT, Message: "Item is not available for purchase"}
)

// ItemStatus represents the lifecycle state of a catalog item.
type ItemStatus string

const (
	ItemStatusDraft      ItemStatus = "draft"
	ItemStatusPublished  ItemStatus = "published"
	ItemStatusArchived   ItemStatus = "archived"
	ItemStatusOutOfStock ItemStatus = "out_of_stock"
)

// ValidItemStatus reports whether s names a known status.
func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemStatusDraft, ItemStatusPublished, ItemStatusArchived, ItemStatusOutOfStock:
		return true
	}
	return false
}

// Item represents a purchasable catalog item.
type Item struct {
	ID       uuid.UUID
	Name     string
	Slug     string
	SKU      string
	Category string // resolved category name

	// Pricing, in the store currency's minor unit
	PriceCents         int64
	OriginalPriceCents *int64
	DiscountPercent    int32 // derived when OriginalPriceCents > PriceCents

	// Inventory
	Stock       int32
	IsAvailable bool
	Status      ItemStatus

	// Usage counters
	Views         int64
	Purchases     int64
	WishlistAdds  int64
	RatingAverage float64
	RatingCount   int32

	Tags     []string
	ImageURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrendingScore derives the ranking value from usage counters.
// Recomputed on read so it always reflects the latest counters;
// never persisted as the sort key.
func (i Item) TrendingScore() float64 {
	return float64(i.Purchases)*3 + float64(i.Views)*0.1 + float64(i.WishlistAdds)*2 + i.RatingAverage*10
}

// DiscountPercentFor computes the rounded discount percentage for a price pair.
// Returns 0 unless original is strictly greater than price.
func DiscountPercentFor(priceCents int64, originalCents *int64) int32 {
	if originalCents == nil || *originalCents <= priceCents || *originalCents == 0 {
		return 0
	}
	return int32(math.Round(float64(*originalCents-priceCents) / float64(*originalCents) * 100))
}

// ItemSort orders item listings.
type ItemSort string

const (
	ItemSortPriceAsc  ItemSort = "price_asc"
	ItemSortPriceDesc ItemSort = "price_desc"
	ItemSortName      ItemSort = "name"
	ItemSortRating    ItemSort = "rating"
	ItemSortTrending  ItemSort = "trending"
	ItemSortFeatured  ItemSort = "featured"
)

// ItemFilter contains optional filters for item listing.
type ItemFilter struct {
	Category      *string // category slug; descendants included
	MinPriceCents *int64
	MaxPriceCents *int64
	Tag           *string
	AvailableOnly bool
	MinRating     *float64
	Status        *ItemStatus

	Sort   ItemSort
	Limit  int32
	Offset int32
}

// CreateItemParams contains parameters for creating an item.
type CreateItemParams struct {
	Name               string
	Slug               string
	SKU                string
	Category           string
	PriceCents         int64
	OriginalPriceCents *int64
	Stock              int32
	Status             ItemStatus
	Tags               []string
	ImageURL           string
}

// UpdateItemParams contains parameters for updating an item.
// Pointer fields indicate optional updates (nil = no change).
type UpdateItemParams struct {
	Name               *string
	Slug               *string
	SKU                *string
	Category           *string
	PriceCents         *int64
	OriginalPriceCents *int64
	ClearOriginalPrice bool
	Stock              *int32
	Status             *ItemStatus
	Tags               []string
	ImageURL           *string
}

// CatalogService provides business logic for catalog item operations.
type CatalogService interface {
	// List returns items matching the filter, paginated.
	List(ctx context.Context, filter ItemFilter) ([]Item, error)

	// GetBySlug retrieves an item and increments its view counter.
	GetBySlug(ctx context.Context, slug string) (*Item, error)

	// GetByID retrieves an item without touching counters.
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// Create creates an item, enforcing SKU and slug uniqueness.
	Create(ctx context.Context, params CreateItemParams) (*Item, error)

	// Update mutates an item, recomputing the discount percentage and
	// re-deriving availability from stock.
	Update(ctx context.Context, id uuid.UUID, params UpdateItemParams) (*Item, error)

	// Delete archives an item.
	Delete(ctx context.Context, id uuid.UUID) error

	// DecrementStock atomically checks and decrements stock.
	// Fails with ErrInsufficientStock when qty exceeds the live count.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int32) error

	// RestoreStock adds stock back, reviving out-of-stock items to
	// published. Intentionally a separate manual operation.
	RestoreStock(ctx context.Context, id uuid.UUID, qty int32) error

	// IncrementPurchases bumps purchase counters after an order is
	// durably created.
	IncrementPurchases(ctx context.Context, id uuid.UUID, qty int32) error

	// IncrementWishlist bumps the wishlist counter.
	IncrementWishlist(ctx context.Context, id uuid.UUID) error
}
