package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order-specific errors.
var (
	ErrOrderNotFound     = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyOrder        = &Error{Code: EINVALID, Message: "Order has no lines"}
	ErrInvalidTransition = &Error{Code: ECONFLICT, Message: "Invalid order status transition"}

	// ErrOrderNumberTaken signals an order-number collision at persistence
	// time; the engine retries with a widened suffix, it never fails the order.
	ErrOrderNumberTaken = &Error{Code: ECONFLICT, Message: "Order number already exists"}

	// ErrDuplicateClientRequest signals a concurrent creation carrying the
	// same client request id; the engine returns the existing order.
	ErrDuplicateClientRequest = &Error{Code: ECONFLICT, Message: "Order already created for this request"}
)

// OrderStatus is one state of the fulfillment state machine.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions is the fulfillment transition table. Absent entries are
// terminal states. Pending is never re-entered once left.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

// CanTransition reports whether from -> to is allowed by the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no transition leaves the status.
func IsTerminalStatus(s OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// ValidOrderStatus reports whether s names a known status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// OrderLine is an immutable snapshot of one purchased item: name, price and
// image are captured at creation time and decoupled from later catalog edits.
type OrderLine struct {
	ItemID         uuid.UUID
	Name           string
	SKU            string
	UnitPriceCents int64
	Quantity       int32
	ImageURL       string
}

// ShippingInfo is the destination snapshot stored on the order.
type ShippingInfo struct {
	FullName     string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	Phone        string
}

// Order is the permanent, auditable record produced from a finalized cart.
// Totals are computed once at creation and never recomputed from live prices.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	IdentityID  uuid.UUID
	Lines       []OrderLine
	Shipping    ShippingInfo

	// PaymentRef is an opaque reference supplied by the payment
	// collaborator; no validation happens here.
	PaymentRef string

	// ClientRequestID is the retry-dedup key carried over from creation;
	// empty for orders created without one.
	ClientRequestID string

	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	Currency      string

	Status OrderStatus

	// NeedsReconciliation marks orders whose stock decrement failed after
	// the record was persisted; surfaced to admin tooling, never to the
	// customer-facing creation call.
	NeedsReconciliation bool
	Notes               string

	OrderedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	UpdatedAt   time.Time
}

// OrderRequestLine is one requested line at checkout. Quantities are
// re-validated against live stock at creation time, not trusted from the
// cart snapshot.
type OrderRequestLine struct {
	ItemID   uuid.UUID
	Quantity int32
}

// CreateOrderParams contains everything needed to convert a finalized cart
// into an order.
type CreateOrderParams struct {
	IdentityID uuid.UUID
	Lines      []OrderRequestLine
	Shipping   ShippingInfo
	PaymentRef string

	// ClientRequestID dedupes retried creations after a timeout: a second
	// create carrying the same id returns the already-created order.
	ClientRequestID string
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	IdentityID *uuid.UUID
	Status     *OrderStatus
	From       *time.Time
	To         *time.Time
	Limit      int32
	Offset     int32
}

// OrderService is the order creation and lifecycle engine.
type OrderService interface {
	// CreateOrder validates lines against live stock, snapshots them,
	// assigns a unique order number, persists the order, then decrements
	// stock. A decrement failure after persistence flags the order for
	// manual reconciliation; the order is still returned successfully.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error)

	// GetOrder retrieves an order by id.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetOrderByNumber retrieves an order by its human-readable number.
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)

	// ListOrders returns orders matching the filter, newest first.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)

	// ListReconciliationFlagged returns orders needing manual inventory
	// reconciliation.
	ListReconciliationFlagged(ctx context.Context) ([]Order, error)

	// UpdateStatus applies one transition from the table, setting the
	// shipped/delivered timestamp on first entry into those states.
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (*Order, error)

	// Cancel moves a non-terminal order to cancelled. Does not restock.
	Cancel(ctx context.Context, id uuid.UUID) (*Order, error)

	// Refund moves a shipped or delivered order to refunded. Does not restock.
	Refund(ctx context.Context, id uuid.UUID) (*Order, error)

	// RestockOrder is the explicit manual inventory-restore for a
	// cancelled or refunded order.
	RestockOrder(ctx context.Context, id uuid.UUID) error
}
