package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/telemetry"
)

// categoryResolver is the slice of the category service the catalog needs to
// expand a category filter into the category plus its descendants.
type categoryResolver interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	GetDescendants(ctx context.Context, id uuid.UUID) ([]domain.Category, error)
}

// Catalog implements domain.CatalogService.
type Catalog struct {
	store      ItemStore
	categories categoryResolver
	bus        events.Bus
	metrics    *telemetry.BusinessMetrics
	logger     zerolog.Logger
}

// NewCatalog creates the catalog service.
func NewCatalog(store ItemStore, categories categoryResolver, bus events.Bus, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *Catalog {
	return &Catalog{
		store:      store,
		categories: categories,
		bus:        bus,
		metrics:    metrics,
		logger:     logger.With().Str("component", "catalog_service").Logger(),
	}
}

var _ domain.CatalogService = (*Catalog)(nil)

// List returns items matching the filter. A category filter matches the
// named category and everything below it in the tree.
func (s *Catalog) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	var categoryNames []string
	if filter.Category != nil {
		category, err := s.categories.GetBySlug(ctx, *filter.Category)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				// unknown category matches nothing rather than erroring
				return []domain.Item{}, nil
			}
			return nil, err
		}
		descendants, err := s.categories.GetDescendants(ctx, category.ID)
		if err != nil {
			return nil, err
		}
		categoryNames = append(categoryNames, category.Name)
		for _, d := range descendants {
			categoryNames = append(categoryNames, d.Name)
		}
	}
	return s.store.List(ctx, filter, categoryNames)
}

// GetBySlug retrieves an item and bumps its view counter. The counter write
// is best-effort; a failed bump never fails the read.
func (s *Catalog) GetBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	item, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementViews(ctx, item.ID); err != nil {
		s.logger.Warn().Err(err).Str("item_id", item.ID.String()).Msg("failed to bump view counter")
	} else {
		item.Views++
		s.metrics.ItemViews.Inc()
	}
	return item, nil
}

// GetByID retrieves an item without touching counters.
func (s *Catalog) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return s.store.GetByID(ctx, id)
}

// Create creates an item, enforcing SKU and slug uniqueness.
func (s *Catalog) Create(ctx context.Context, params domain.CreateItemParams) (*domain.Item, error) {
	const op = "catalog.create"

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, "Item name is required")
	}
	if strings.TrimSpace(params.SKU) == "" {
		return nil, domain.Invalid(op, "SKU is required")
	}
	if params.PriceCents < 0 {
		return nil, domain.Invalid(op, "Price cannot be negative")
	}
	if params.Stock < 0 {
		return nil, domain.ErrNegativeStock
	}
	if params.OriginalPriceCents != nil && *params.OriginalPriceCents < params.PriceCents {
		return nil, domain.Invalid(op, "Original price cannot be below the sale price")
	}

	slug := params.Slug
	if slug == "" {
		slug = slugify(name)
	}

	status := params.Status
	if status == "" {
		status = domain.ItemStatusDraft
	}
	if params.Stock == 0 && status == domain.ItemStatusPublished {
		status = domain.ItemStatusOutOfStock
	}

	item := domain.Item{
		ID:                 uuid.New(),
		Name:               name,
		Slug:               slug,
		SKU:                params.SKU,
		Category:           params.Category,
		PriceCents:         params.PriceCents,
		OriginalPriceCents: params.OriginalPriceCents,
		DiscountPercent:    domain.DiscountPercentFor(params.PriceCents, params.OriginalPriceCents),
		Stock:              params.Stock,
		IsAvailable:        params.Stock > 0 && status == domain.ItemStatusPublished,
		Status:             status,
		Tags:               params.Tags,
		ImageURL:           params.ImageURL,
	}

	created, err := s.store.Insert(ctx, item)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", created.ID.String()).Str("sku", created.SKU).Msg("item created")
	return created, nil
}

// Update mutates an item. The discount percentage and availability are
// derived fields and are always recomputed here, never trusted from input.
func (s *Catalog) Update(ctx context.Context, id uuid.UUID, params domain.UpdateItemParams) (*domain.Item, error) {
	const op = "catalog.update"

	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, domain.Invalid(op, "Item name cannot be empty")
		}
		item.Name = strings.TrimSpace(*params.Name)
	}
	if params.Slug != nil {
		item.Slug = *params.Slug
	}
	if params.SKU != nil {
		item.SKU = *params.SKU
	}
	if params.Category != nil {
		item.Category = *params.Category
	}
	if params.PriceCents != nil {
		if *params.PriceCents < 0 {
			return nil, domain.Invalid(op, "Price cannot be negative")
		}
		item.PriceCents = *params.PriceCents
	}
	if params.ClearOriginalPrice {
		item.OriginalPriceCents = nil
	} else if params.OriginalPriceCents != nil {
		item.OriginalPriceCents = params.OriginalPriceCents
	}
	if item.OriginalPriceCents != nil && *item.OriginalPriceCents < item.PriceCents {
		return nil, domain.Invalid(op, "Original price cannot be below the sale price")
	}
	if params.Stock != nil {
		if *params.Stock < 0 {
			return nil, domain.ErrNegativeStock
		}
		item.Stock = *params.Stock
	}
	if params.Status != nil {
		item.Status = *params.Status
	}
	if params.Tags != nil {
		item.Tags = params.Tags
	}
	if params.ImageURL != nil {
		item.ImageURL = *params.ImageURL
	}

	// derived fields
	item.DiscountPercent = domain.DiscountPercentFor(item.PriceCents, item.OriginalPriceCents)
	switch {
	case item.Stock == 0 && item.Status == domain.ItemStatusPublished:
		item.Status = domain.ItemStatusOutOfStock
	case item.Stock > 0 && item.Status == domain.ItemStatusOutOfStock:
		item.Status = domain.ItemStatusPublished
	}
	item.IsAvailable = item.Stock > 0 && item.Status == domain.ItemStatusPublished

	return s.store.Update(ctx, *item)
}

// Delete archives an item rather than removing it; order lines keep
// referencing it and its slug stays reserved.
func (s *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	item.Status = domain.ItemStatusArchived
	item.IsAvailable = false
	_, err = s.store.Update(ctx, *item)
	return err
}

// DecrementStock atomically checks and decrements stock, announcing
// depletion when the last unit sells.
func (s *Catalog) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	remaining, err := s.store.DecrementStock(ctx, id, qty)
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			s.metrics.InsufficientStock.Inc()
		}
		return err
	}

	if remaining == 0 {
		s.metrics.StockDepleted.Inc()
		item, err := s.store.GetByID(ctx, id)
		if err == nil {
			s.bus.Publish(ctx, events.StockDepleted{ItemID: item.ID, SKU: item.SKU})
		}
	}
	return nil
}

// RestoreStock adds stock back, reviving out-of-stock items to published.
func (s *Catalog) RestoreStock(ctx context.Context, id uuid.UUID, qty int32) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	_, err := s.store.AddStock(ctx, id, qty)
	return err
}

// IncrementPurchases bumps purchase counters after an order is durably
// created.
func (s *Catalog) IncrementPurchases(ctx context.Context, id uuid.UUID, qty int32) error {
	return s.store.IncrementPurchases(ctx, id, qty)
}

// IncrementWishlist bumps the wishlist counter.
func (s *Catalog) IncrementWishlist(ctx context.Context, id uuid.UUID) error {
	if err := s.store.IncrementWishlist(ctx, id); err != nil {
		return err
	}
	s.metrics.ItemWishlists.Inc()
	return nil
}
