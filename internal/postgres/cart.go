package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tsubaki/figura/internal/domain"
)

// CartStore is the server-of-record for per-identity carts. Each mutation
// bumps the identity's revision so the client engine can discard stale
// reconciliation snapshots.
type CartStore struct {
	db DB
}

var _ domain.CartBackend = (*CartStore)(nil)

// NewCartStore creates a postgres-backed cart store.
func NewCartStore(db DB) *CartStore {
	return &CartStore{db: db}
}

// Fetch returns the authoritative cart. A missing cart is an empty snapshot.
func (s *CartStore) Fetch(ctx context.Context, identityID uuid.UUID) (*domain.CartSnapshot, error) {
	snap := &domain.CartSnapshot{IdentityID: identityID}

	err := s.db.QueryRow(ctx,
		`SELECT revision FROM cart_revisions WHERE identity_id = $1`, identityID,
	).Scan(&snap.Revision)
	if err != nil && !noRows(err) {
		return nil, domain.Internal(err, "cart_store.fetch", "failed to read cart revision")
	}

	rows, err := s.db.Query(ctx, `
		SELECT cl.item_id, i.name, i.sku, cl.unit_price_cents, cl.quantity, i.image_url
		FROM cart_lines cl
		JOIN items i ON i.id = cl.item_id
		WHERE cl.identity_id = $1
		ORDER BY cl.created_at`,
		identityID,
	)
	if err != nil {
		return nil, domain.Internal(err, "cart_store.fetch", "failed to read cart lines")
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.SKU, &l.UnitPriceCents, &l.Quantity, &l.ImageURL); err != nil {
			return nil, domain.Internal(err, "cart_store.fetch", "failed to scan cart line")
		}
		snap.Lines = append(snap.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "cart_store.fetch", "failed to read cart lines")
	}

	return snap, nil
}

// AddItem merges qty into the identity's line for itemID. The unit price is
// captured from the catalog on first add and kept on subsequent merges.
func (s *CartStore) AddItem(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*domain.CartSnapshot, error) {
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	return s.mutate(ctx, identityID, "cart_store.add_item", func(tx pgx.Tx) error {
		var priceCents int64
		var available bool
		var status string
		err := tx.QueryRow(ctx,
			`SELECT price_cents, is_available, status FROM items WHERE id = $1`, itemID,
		).Scan(&priceCents, &available, &status)
		if err != nil {
			if noRows(err) {
				return domain.ErrItemNotFound
			}
			return domain.Internal(err, "cart_store.add_item", "failed to read item")
		}
		if !available || status != string(domain.ItemStatusPublished) {
			return domain.ErrItemUnavailable
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cart_lines (identity_id, item_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (identity_id, item_id)
			DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()`,
			identityID, itemID, qty, priceCents,
		)
		if err != nil {
			return domain.Internal(err, "cart_store.add_item", "failed to upsert cart line")
		}
		return nil
	})
}

// SetQuantity replaces a line's quantity; qty < 1 removes the line.
func (s *CartStore) SetQuantity(ctx context.Context, identityID, itemID uuid.UUID, qty int32) (*domain.CartSnapshot, error) {
	if qty < 1 {
		return s.RemoveItem(ctx, identityID, itemID)
	}

	return s.mutate(ctx, identityID, "cart_store.set_quantity", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE cart_lines SET quantity = $3, updated_at = now()
			WHERE identity_id = $1 AND item_id = $2`,
			identityID, itemID, qty,
		)
		if err != nil {
			return domain.Internal(err, "cart_store.set_quantity", "failed to update cart line")
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrCartLineNotFound
		}
		return nil
	})
}

// RemoveItem deletes a line.
func (s *CartStore) RemoveItem(ctx context.Context, identityID, itemID uuid.UUID) (*domain.CartSnapshot, error) {
	return s.mutate(ctx, identityID, "cart_store.remove_item", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM cart_lines WHERE identity_id = $1 AND item_id = $2`,
			identityID, itemID,
		)
		if err != nil {
			return domain.Internal(err, "cart_store.remove_item", "failed to delete cart line")
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrCartLineNotFound
		}
		return nil
	})
}

// Clear deletes every line for the identity.
func (s *CartStore) Clear(ctx context.Context, identityID uuid.UUID) error {
	_, err := s.mutate(ctx, identityID, "cart_store.clear", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE identity_id = $1`, identityID); err != nil {
			return domain.Internal(err, "cart_store.clear", "failed to clear cart")
		}
		return nil
	})
	return err
}

// mutate runs fn and the revision bump in one transaction, then returns the
// resulting snapshot.
func (s *CartStore) mutate(ctx context.Context, identityID uuid.UUID, op string, fn func(tx pgx.Tx) error) (*domain.CartSnapshot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_revisions (identity_id, revision) VALUES ($1, 1)
		ON CONFLICT (identity_id) DO UPDATE SET revision = cart_revisions.revision + 1`,
		identityID,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to bump cart revision")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, op, "failed to commit cart mutation")
	}

	return s.Fetch(ctx, identityID)
}
