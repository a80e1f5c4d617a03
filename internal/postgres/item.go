package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tsubaki/figura/internal/domain"
)

// ItemStore persists catalog items. DecrementStock is the one operation here
// that must be atomic: the stock check and the decrement are a single
// conditional UPDATE so concurrent checkouts cannot oversell the last unit.
type ItemStore struct {
	db DB
}

// NewItemStore creates a postgres-backed item store.
func NewItemStore(db DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `id, name, slug, sku, category, price_cents, original_price_cents, discount_percent,
	stock, is_available, status, views, purchases, wishlist_adds, rating_average, rating_count,
	tags, image_url, created_at, updated_at`

// List returns items matching the filter. categories carries the resolved
// category-name set (the requested category plus its descendants); empty
// means no category filter.
func (s *ItemStore) List(ctx context.Context, filter domain.ItemFilter, categories []string) ([]domain.Item, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(categories) > 0 {
		where = append(where, "category = ANY("+arg(categories)+")")
	}
	if filter.MinPriceCents != nil {
		where = append(where, "price_cents >= "+arg(*filter.MinPriceCents))
	}
	if filter.MaxPriceCents != nil {
		where = append(where, "price_cents <= "+arg(*filter.MaxPriceCents))
	}
	if filter.Tag != nil {
		where = append(where, arg(*filter.Tag)+" = ANY(tags)")
	}
	if filter.AvailableOnly {
		where = append(where, "is_available AND status = 'published'")
	}
	if filter.MinRating != nil {
		where = append(where, "rating_average >= "+arg(*filter.MinRating))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(string(*filter.Status)))
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += orderClause(filter.Sort)

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "item_store.list", "failed to list items")
	}
	defer rows.Close()

	return collectItems(rows)
}

// orderClause maps a sort to SQL. Trending ranks by the live counter formula
// so it always reflects the latest counters; the score is never persisted.
func orderClause(sort domain.ItemSort) string {
	switch sort {
	case domain.ItemSortPriceAsc:
		return ` ORDER BY price_cents, name`
	case domain.ItemSortPriceDesc:
		return ` ORDER BY price_cents DESC, name`
	case domain.ItemSortRating:
		return ` ORDER BY rating_average DESC, rating_count DESC, name`
	case domain.ItemSortTrending:
		return ` ORDER BY (purchases * 3 + views * 0.1 + wishlist_adds * 2 + rating_average * 10) DESC, name`
	case domain.ItemSortFeatured:
		return ` ORDER BY discount_percent DESC, rating_average DESC, name`
	case domain.ItemSortName:
		fallthrough
	default:
		return ` ORDER BY name`
	}
}

// GetByID retrieves an item.
func (s *ItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, domain.Internal(err, "item_store.get", "failed to get item")
	}
	return item, nil
}

// GetBySlug retrieves an item by slug.
func (s *ItemStore) GetBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE slug = $1`, slug)
	item, err := scanItem(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, domain.Internal(err, "item_store.get_by_slug", "failed to get item by slug")
	}
	return item, nil
}

// Insert persists a new item. SKU and slug unique violations are translated
// to their conflict errors.
func (s *ItemStore) Insert(ctx context.Context, item domain.Item) (*domain.Item, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO items (id, name, slug, sku, category, price_cents, original_price_cents,
			discount_percent, stock, is_available, status, tags, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Slug, item.SKU, item.Category, item.PriceCents,
		item.OriginalPriceCents, item.DiscountPercent, item.Stock, item.IsAvailable,
		string(item.Status), tagsOrEmpty(item.Tags), item.ImageURL,
	)

	created, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err, "items_sku_key") {
			return nil, domain.ErrDuplicateSKU
		}
		if isUniqueViolation(err, "items_slug_key") {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, domain.Internal(err, "item_store.insert", "failed to insert item")
	}
	return created, nil
}

// Update persists a full item row, excluding counters (counter columns move
// only through the increment operations).
func (s *ItemStore) Update(ctx context.Context, item domain.Item) (*domain.Item, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE items
		SET name = $2, slug = $3, sku = $4, category = $5, price_cents = $6,
		    original_price_cents = $7, discount_percent = $8, stock = $9,
		    is_available = $10, status = $11, tags = $12, image_url = $13,
		    rating_average = $14, rating_count = $15, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Slug, item.SKU, item.Category, item.PriceCents,
		item.OriginalPriceCents, item.DiscountPercent, item.Stock, item.IsAvailable,
		string(item.Status), tagsOrEmpty(item.Tags), item.ImageURL,
		item.RatingAverage, item.RatingCount,
	)

	updated, err := scanItem(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrItemNotFound
		}
		if isUniqueViolation(err, "items_sku_key") {
			return nil, domain.ErrDuplicateSKU
		}
		if isUniqueViolation(err, "items_slug_key") {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, domain.Internal(err, "item_store.update", "failed to update item")
	}
	return updated, nil
}

// DecrementStock applies "decrement only if stock >= qty" in one statement.
// Returns the remaining stock. A separate read-then-write would race under
// concurrent checkouts for the last unit.
func (s *ItemStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int32) (int32, error) {
	var remaining int32
	err := s.db.QueryRow(ctx, `
		UPDATE items
		SET stock = stock - $2,
		    status = CASE WHEN stock - $2 = 0 THEN 'out_of_stock' ELSE status END,
		    is_available = CASE WHEN stock - $2 = 0 THEN FALSE ELSE is_available END,
		    updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock`,
		id, qty,
	).Scan(&remaining)
	if err != nil {
		if noRows(err) {
			// Distinguish a missing item from an insufficient-stock reject.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, domain.ErrInsufficientStock
		}
		return 0, domain.Internal(err, "item_store.decrement_stock", "failed to decrement stock")
	}
	return remaining, nil
}

// AddStock adds qty back, reviving out-of-stock items to published.
func (s *ItemStore) AddStock(ctx context.Context, id uuid.UUID, qty int32) (*domain.Item, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE items
		SET stock = stock + $2,
		    status = CASE WHEN status = 'out_of_stock' AND stock + $2 > 0 THEN 'published' ELSE status END,
		    is_available = CASE WHEN stock + $2 > 0 AND status IN ('out_of_stock', 'published') THEN TRUE ELSE is_available END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, qty,
	)

	item, err := scanItem(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, domain.Internal(err, "item_store.add_stock", "failed to restore stock")
	}
	return item, nil
}

// IncrementViews bumps the view counter.
func (s *ItemStore) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE items SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "item_store.increment_views", "failed to increment views")
	}
	return nil
}

// IncrementPurchases bumps the purchase counter by qty.
func (s *ItemStore) IncrementPurchases(ctx context.Context, id uuid.UUID, qty int32) error {
	_, err := s.db.Exec(ctx, `UPDATE items SET purchases = purchases + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return domain.Internal(err, "item_store.increment_purchases", "failed to increment purchases")
	}
	return nil
}

// IncrementWishlist bumps the wishlist counter.
func (s *ItemStore) IncrementWishlist(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE items SET wishlist_adds = wishlist_adds + 1 WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "item_store.increment_wishlist", "failed to increment wishlist adds")
	}
	return nil
}

func collectItems(rows pgx.Rows) ([]domain.Item, error) {
	var out []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.Internal(err, "item_store.scan", "failed to scan item")
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "item_store.scan", "failed to read items")
	}
	return out, nil
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var item domain.Item
	var status string
	err := row.Scan(&item.ID, &item.Name, &item.Slug, &item.SKU, &item.Category,
		&item.PriceCents, &item.OriginalPriceCents, &item.DiscountPercent,
		&item.Stock, &item.IsAvailable, &status, &item.Views, &item.Purchases,
		&item.WishlistAdds, &item.RatingAverage, &item.RatingCount,
		&item.Tags, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Status = domain.ItemStatus(status)
	return &item, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
