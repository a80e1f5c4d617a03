package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/shipping"
	"github.com/tsubaki/figura/internal/tax"
	"github.com/tsubaki/figura/internal/telemetry"
)

// orderNumberSuffixLen is the starting width of the random order-number
// suffix. Each collision widens it by one digit before retrying.
const orderNumberSuffixLen = 4

// orderNumberAttempts bounds collision retries. With a widening suffix the
// chance of exhausting this is negligible; hitting it means the random
// source is broken.
const orderNumberAttempts = 8

// OrderEngine implements domain.OrderService: order creation with stock
// validation, unique order numbers, and the fulfillment state machine.
//
// Creation is deliberately not one large transaction: the order record is
// persisted first, then stock is decremented per line. A decrement failure
// after persistence flags the order for manual reconciliation instead of
// deleting a customer-facing order that may already have been paid for.
type OrderEngine struct {
	orders   OrderStore
	catalog  domain.CatalogService
	tax      tax.Calculator
	shipping shipping.Provider
	bus      events.Bus
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
	currency string

	now func() time.Time
}

// NewOrderEngine creates the order engine.
func NewOrderEngine(orders OrderStore, catalog domain.CatalogService, taxCalc tax.Calculator, shipProvider shipping.Provider, bus events.Bus, metrics *telemetry.BusinessMetrics, currency string, logger zerolog.Logger) *OrderEngine {
	return &OrderEngine{
		orders:   orders,
		catalog:  catalog,
		tax:      taxCalc,
		shipping: shipProvider,
		bus:      bus,
		metrics:  metrics,
		logger:   logger.With().Str("component", "order_engine").Logger(),
		currency: currency,
		now:      time.Now,
	}
}

var _ domain.OrderService = (*OrderEngine)(nil)

// CreateOrder converts validated request lines into a persisted order.
// A request carrying an already-seen ClientRequestID returns the existing
// order instead of creating a duplicate.
func (e *OrderEngine) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	if len(params.Lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	if params.IdentityID == uuid.Nil {
		return nil, domain.ErrAuthenticationRequired
	}
	for _, line := range params.Lines {
		if line.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	if params.ClientRequestID != "" {
		existing, err := e.orders.GetByClientRequestID(ctx, params.ClientRequestID)
		if err == nil {
			return existing, nil
		}
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return nil, err
		}
	}

	lines, subtotal, discount, err := e.snapshotLines(ctx, params.Lines)
	if err != nil {
		return nil, err
	}
	// Shipping and tax apply to what the customer actually pays for the
	// goods, not the pre-markdown value.
	goods := subtotal - discount

	quote, err := e.shipping.Quote(ctx, shipping.QuoteParams{
		Destination:   shippingAddress(params.Shipping),
		SubtotalCents: goods,
		ItemCount:     lineCount(lines),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to quote shipping")
	}

	taxResult, err := e.tax.CalculateTax(ctx, tax.TaxParams{
		Destination:   taxAddress(params.Shipping),
		SubtotalCents: goods,
		ShippingCents: quote.CostCents,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to calculate tax")
	}

	order := domain.Order{
		ID:              uuid.New(),
		IdentityID:      params.IdentityID,
		Lines:           lines,
		Shipping:        params.Shipping,
		PaymentRef:      params.PaymentRef,
		ClientRequestID: params.ClientRequestID,
		SubtotalCents:   subtotal,
		TaxCents:        taxResult.TotalTaxCents,
		ShippingCents:   quote.CostCents,
		DiscountCents:   discount,
		TotalCents:      subtotal + taxResult.TotalTaxCents + quote.CostCents - discount,
		Currency:        e.currency,
		Status:          domain.OrderStatusPending,
	}

	created, err := e.persistWithUniqueNumber(ctx, order)
	if err != nil {
		return nil, err
	}

	e.decrementStock(ctx, created)
	e.recordCreation(ctx, created)
	return created, nil
}

// snapshotLines validates each requested line against the live catalog and
// captures name, price, and image at this moment. The subtotal is the
// pre-markdown value (original price where one is set), so that
// total = subtotal + tax + shipping - discount holds on the stored row.
func (e *OrderEngine) snapshotLines(ctx context.Context, requested []domain.OrderRequestLine) (lines []domain.OrderLine, subtotal, discount int64, err error) {
	for _, req := range requested {
		item, err := e.catalog.GetByID(ctx, req.ItemID)
		if err != nil {
			return nil, 0, 0, err
		}
		if !item.IsAvailable || item.Status != domain.ItemStatusPublished {
			return nil, 0, 0, domain.ErrItemUnavailable
		}
		if item.Stock < req.Quantity {
			e.metrics.InsufficientStock.Inc()
			return nil, 0, 0, domain.ErrInsufficientStock
		}

		lines = append(lines, domain.OrderLine{
			ItemID:         item.ID,
			Name:           item.Name,
			SKU:            item.SKU,
			UnitPriceCents: item.PriceCents,
			Quantity:       req.Quantity,
			ImageURL:       item.ImageURL,
		})
		listPrice := item.PriceCents
		if item.OriginalPriceCents != nil && *item.OriginalPriceCents > item.PriceCents {
			listPrice = *item.OriginalPriceCents
			discount += (*item.OriginalPriceCents - item.PriceCents) * int64(req.Quantity)
		}
		subtotal += listPrice * int64(req.Quantity)
	}
	return lines, subtotal, discount, nil
}

// persistWithUniqueNumber assigns an order number and inserts, regenerating
// with a widened random suffix on collision. A collision never fails the
// order; exhausting every attempt does.
func (e *OrderEngine) persistWithUniqueNumber(ctx context.Context, order domain.Order) (*domain.Order, error) {
	const op = "order.create"

	suffixLen := orderNumberSuffixLen
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := e.generateOrderNumber(suffixLen)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to generate order number")
		}
		order.OrderNumber = number

		created, err := e.orders.Insert(ctx, order)
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, domain.ErrDuplicateClientRequest):
			// lost a race with a retry of the same request
			return e.orders.GetByClientRequestID(ctx, order.ClientRequestID)
		case errors.Is(err, domain.ErrOrderNumberTaken):
			e.metrics.OrderNumberCollisions.Inc()
			e.logger.Warn().Str("order_number", number).Int("attempt", attempt+1).Msg("order number collision, regenerating")
			suffixLen++
		default:
			return nil, err
		}
	}
	return nil, domain.Internal(nil, op, "exhausted order number generation attempts")
}

// generateOrderNumber builds "ORD-<yyyymmddhhmmss>-<random digits>".
func (e *OrderEngine) generateOrderNumber(suffixLen int) (string, error) {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, suffixLen)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return fmt.Sprintf("ORD-%s-%s", e.now().UTC().Format("20060102150405"), digits), nil
}

// decrementStock applies per-line stock decrements after the order record
// exists. Failures flag the order for manual reconciliation; they never
// surface to the creation caller.
func (e *OrderEngine) decrementStock(ctx context.Context, order *domain.Order) {
	for _, line := range order.Lines {
		if err := e.catalog.DecrementStock(ctx, line.ItemID, line.Quantity); err != nil {
			note := fmt.Sprintf("stock decrement failed for item %s (sku %s, qty %d): %s",
				line.ItemID, line.SKU, line.Quantity, domain.ErrorMessage(err))
			e.logger.Error().Err(err).
				Str("order_id", order.ID.String()).
				Str("item_id", line.ItemID.String()).
				Msg("stock decrement failed after order persisted, flagging for reconciliation")

			if flagErr := e.orders.FlagReconciliation(ctx, order.ID, note); flagErr != nil {
				e.logger.Error().Err(flagErr).Str("order_id", order.ID.String()).Msg("failed to flag order for reconciliation")
			}
			order.NeedsReconciliation = true
			e.metrics.ReconciliationFlags.Inc()
			continue
		}

		if err := e.catalog.IncrementPurchases(ctx, line.ItemID, line.Quantity); err != nil {
			e.logger.Warn().Err(err).Str("item_id", line.ItemID.String()).Msg("failed to bump purchase counter")
		}
	}
}

func (e *OrderEngine) recordCreation(ctx context.Context, order *domain.Order) {
	e.metrics.OrdersCreated.Inc()
	e.metrics.OrderValue.Observe(float64(order.TotalCents))
	e.metrics.OrderItemCount.Observe(float64(lineCount(order.Lines)))

	e.bus.Publish(ctx, events.OrderCreated{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		IdentityID:  order.IdentityID,
		TotalCents:  order.TotalCents,
	})

	e.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int64("total_cents", order.TotalCents).
		Bool("needs_reconciliation", order.NeedsReconciliation).
		Msg("order created")
}

// GetOrder retrieves an order by id.
func (e *OrderEngine) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return e.orders.GetByID(ctx, id)
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (e *OrderEngine) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return e.orders.GetByNumber(ctx, number)
}

// ListOrders returns orders matching the filter, newest first.
func (e *OrderEngine) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return e.orders.List(ctx, filter)
}

// ListReconciliationFlagged returns orders needing manual inventory
// reconciliation.
func (e *OrderEngine) ListReconciliationFlagged(ctx context.Context) ([]domain.Order, error) {
	return e.orders.ListFlagged(ctx)
}

// UpdateStatus applies one transition from the fulfillment table, stamping
// shipped/delivered on first entry into those states.
func (e *OrderEngine) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	const op = "order.update_status"

	if !domain.ValidOrderStatus(status) {
		return nil, domain.Invalid(op, "Unknown order status")
	}

	order, err := e.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, status) {
		return nil, domain.ErrInvalidTransition
	}

	var shippedAt, deliveredAt *time.Time
	now := e.now().UTC()
	if status == domain.OrderStatusShipped && order.ShippedAt == nil {
		shippedAt = &now
	}
	if status == domain.OrderStatusDelivered && order.DeliveredAt == nil {
		deliveredAt = &now
	}

	updated, err := e.orders.UpdateStatus(ctx, id, status, shippedAt, deliveredAt)
	if err != nil {
		return nil, err
	}

	e.metrics.OrderStatusChanges.WithLabelValues(string(status)).Inc()
	e.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(order.Status)).
		Str("to", string(status)).
		Msg("order status updated")
	return updated, nil
}

// Cancel moves a non-terminal order to cancelled. Inventory is not restored
// automatically; RestockOrder is the explicit manual step.
func (e *OrderEngine) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return e.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
}

// Refund moves a shipped or delivered order to refunded. Does not restock.
func (e *OrderEngine) Refund(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return e.UpdateStatus(ctx, id, domain.OrderStatusRefunded)
}

// RestockOrder restores each line's stock for a cancelled or refunded
// order. Kept separate from cancellation so damaged or unsellable returns
// are never restocked implicitly.
func (e *OrderEngine) RestockOrder(ctx context.Context, id uuid.UUID) error {
	const op = "order.restock"

	order, err := e.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusCancelled && order.Status != domain.OrderStatusRefunded {
		return domain.Conflict(op, "Only cancelled or refunded orders can be restocked")
	}

	for _, line := range order.Lines {
		if err := e.catalog.RestoreStock(ctx, line.ItemID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func lineCount(lines []domain.OrderLine) int32 {
	var n int32
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func shippingAddress(info domain.ShippingInfo) shipping.Address {
	return shipping.Address{
		Line1:      info.AddressLine1,
		Line2:      info.AddressLine2,
		City:       info.City,
		State:      info.State,
		PostalCode: info.PostalCode,
		Country:    info.Country,
	}
}

func taxAddress(info domain.ShippingInfo) tax.Address {
	return tax.Address{
		Line1:      info.AddressLine1,
		Line2:      info.AddressLine2,
		City:       info.City,
		State:      info.State,
		PostalCode: info.PostalCode,
		Country:    info.Country,
	}
}
