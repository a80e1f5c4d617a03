package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tsubaki/figura/internal/domain"
)

// OrderStore persists orders and their immutable line snapshots.
type OrderStore struct {
	db DB
}

// NewOrderStore creates a postgres-backed order store.
func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, order_number, identity_id, client_request_id, shipping, payment_ref,
	subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, currency,
	status, needs_reconciliation, notes, ordered_at, shipped_at, delivered_at, updated_at`

// Insert persists the order and its lines atomically. An order-number
// collision surfaces as ErrOrderNumberTaken so the engine can regenerate;
// a client-request-id collision surfaces as ErrDuplicateClientRequest so the
// engine can return the already-created order.
func (s *OrderStore) Insert(ctx context.Context, order domain.Order) (*domain.Order, error) {
	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return nil, domain.Internal(err, "order_store.insert", "failed to encode shipping snapshot")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, "order_store.insert", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var clientRequestID *string
	if order.ClientRequestID != "" {
		clientRequestID = &order.ClientRequestID
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, identity_id, client_request_id, shipping, payment_ref,
			subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+orderColumns,
		order.ID, order.OrderNumber, order.IdentityID, clientRequestID, shipping, order.PaymentRef,
		order.SubtotalCents, order.TaxCents, order.ShippingCents, order.DiscountCents,
		order.TotalCents, order.Currency, string(order.Status),
	)

	created, err := scanOrder(row)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return nil, domain.ErrOrderNumberTaken
		}
		if isUniqueViolation(err, "orders_client_request_id_key") {
			return nil, domain.ErrDuplicateClientRequest
		}
		return nil, domain.Internal(err, "order_store.insert", "failed to insert order")
	}

	for i, line := range order.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, line_no, item_id, name, sku, unit_price_cents, quantity, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			created.ID, i+1, line.ItemID, line.Name, line.SKU, line.UnitPriceCents, line.Quantity, line.ImageURL,
		)
		if err != nil {
			return nil, domain.Internal(err, "order_store.insert", "failed to insert order line")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, "order_store.insert", "failed to commit order")
	}

	created.Lines = order.Lines
	return created, nil
}

// GetByID retrieves an order with its lines.
func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.getOne(ctx, "order_store.get", `WHERE id = $1`, id)
}

// GetByNumber retrieves an order by its human-readable number.
func (s *OrderStore) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.getOne(ctx, "order_store.get_by_number", `WHERE order_number = $1`, number)
}

// GetByClientRequestID retrieves the order created for a client request id,
// the idempotency-safe lookup after a timed-out creation.
func (s *OrderStore) GetByClientRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	return s.getOne(ctx, "order_store.get_by_request", `WHERE client_request_id = $1`, requestID)
}

func (s *OrderStore) getOne(ctx context.Context, op, where string, arg any) (*domain.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)
	order, err := scanOrder(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}

	if err := s.loadLines(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to load order lines")
	}
	return order, nil
}

// List returns orders matching the filter, newest first.
func (s *OrderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.IdentityID != nil {
		query += ` AND identity_id = ` + arg(*filter.IdentityID)
	}
	if filter.Status != nil {
		query += ` AND status = ` + arg(string(*filter.Status))
	}
	if filter.From != nil {
		query += ` AND ordered_at >= ` + arg(*filter.From)
	}
	if filter.To != nil {
		query += ` AND ordered_at < ` + arg(*filter.To)
	}

	query += ` ORDER BY ordered_at DESC`

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
		return nil, domain.Internal(err, "order_store.list", "failed to list orders")
	}
	defer rows.Close()

	return s.collectWithLines(ctx, rows, "order_store.list")
}

// ListFlagged returns orders needing manual inventory reconciliation,
// oldest first so the backlog drains in order.
func (s *OrderStore) ListFlagged(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE needs_reconciliation ORDER BY ordered_at`)
	if err != nil {
		return nil, domain.Internal(err, "order_store.list_flagged", "failed to list flagged orders")
	}
	defer rows.Close()

	return s.collectWithLines(ctx, rows, "order_store.list_flagged")
}

// UpdateStatus persists a status transition with its timestamps.
func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, shippedAt, deliveredAt *time.Time) (*domain.Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $2,
		    shipped_at = COALESCE($3, shipped_at),
		    delivered_at = COALESCE($4, delivered_at),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, string(status), shippedAt, deliveredAt,
	)

	order, err := scanOrder(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order_store.update_status", "failed to update order status")
	}

	if err := s.loadLines(ctx, order); err != nil {
		return nil, domain.Internal(err, "order_store.update_status", "failed to load order lines")
	}
	return order, nil
}

// FlagReconciliation marks an order for manual inventory repair, appending
// the reason to its notes.
func (s *OrderStore) FlagReconciliation(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET needs_reconciliation = TRUE,
		    notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
		    updated_at = now()
		WHERE id = $1`,
		id, note,
	)
	if err != nil {
		return domain.Internal(err, "order_store.flag_reconciliation", "failed to flag order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) collectWithLines(ctx context.Context, rows pgx.Rows, op string) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan order")
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read orders")
	}

	for i := range out {
		if err := s.loadLines(ctx, &out[i]); err != nil {
			return nil, domain.Internal(err, op, "failed to load order lines")
		}
	}
	return out, nil
}

func (s *OrderStore) loadLines(ctx context.Context, order *domain.Order) error {
	rows, err := s.db.Query(ctx, `
		SELECT item_id, name, sku, unit_price_cents, quantity, image_url
		FROM order_lines WHERE order_id = $1 ORDER BY line_no`,
		order.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.Lines = nil
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.SKU, &l.UnitPriceCents, &l.Quantity, &l.ImageURL); err != nil {
			return err
		}
		order.Lines = append(order.Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	var clientRequestID *string
	var shipping []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &o.IdentityID, &clientRequestID, &shipping, &o.PaymentRef,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.DiscountCents, &o.TotalCents, &o.Currency,
		&status, &o.NeedsReconciliation, &o.Notes, &o.OrderedAt, &o.ShippedAt, &o.DeliveredAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if clientRequestID != nil {
		o.ClientRequestID = *clientRequestID
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, err
	}
	return &o, nil
}
