package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsubaki/figura/internal/domain"
)

type orderLineResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int32     `json:"quantity"`
	ImageURL       string    `json:"image_url,omitempty"`
}

type shippingInfoPayload struct {
	FullName     string `json:"full_name" validate:"required,max=200"`
	AddressLine1 string `json:"address_line1" validate:"required,max=200"`
	AddressLine2 string `json:"address_line2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,len=2"`
	Phone        string `json:"phone" validate:"max=32"`
}

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	OrderNumber         string              `json:"order_number"`
	IdentityID          uuid.UUID           `json:"identity_id"`
	Lines               []orderLineResponse `json:"lines"`
	Shipping            shippingInfoPayload `json:"shipping"`
	PaymentRef          string              `json:"payment_ref,omitempty"`
	SubtotalCents       int64               `json:"subtotal_cents"`
	TaxCents            int64               `json:"tax_cents"`
	ShippingCents       int64               `json:"shipping_cents"`
	DiscountCents       int64               `json:"discount_cents"`
	TotalCents          int64               `json:"total_cents"`
	Currency            string              `json:"currency"`
	Status              string              `json:"status"`
	NeedsReconciliation bool                `json:"needs_reconciliation"`
	Notes               string              `json:"notes,omitempty"`
	OrderedAt           time.Time           `json:"ordered_at"`
	ShippedAt           *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt         *time.Time          `json:"delivered_at,omitempty"`
}

func toOrderResponse(o domain.Order) orderResponse {
	out := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		IdentityID:  o.IdentityID,
		Lines:       make([]orderLineResponse, 0, len(o.Lines)),
		Shipping: shippingInfoPayload{
			FullName:     o.Shipping.FullName,
			AddressLine1: o.Shipping.AddressLine1,
			AddressLine2: o.Shipping.AddressLine2,
			City:         o.Shipping.City,
			State:        o.Shipping.State,
			PostalCode:   o.Shipping.PostalCode,
			Country:      o.Shipping.Country,
			Phone:        o.Shipping.Phone,
		},
		PaymentRef:          o.PaymentRef,
		SubtotalCents:       o.SubtotalCents,
		TaxCents:            o.TaxCents,
		ShippingCents:       o.ShippingCents,
		DiscountCents:       o.DiscountCents,
		TotalCents:          o.TotalCents,
		Currency:            o.Currency,
		Status:              string(o.Status),
		NeedsReconciliation: o.NeedsReconciliation,
		Notes:               o.Notes,
		OrderedAt:           o.OrderedAt,
		ShippedAt:           o.ShippedAt,
		DeliveredAt:         o.DeliveredAt,
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, orderLineResponse{
			ItemID:         l.ItemID,
			Name:           l.Name,
			SKU:            l.SKU,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			ImageURL:       l.ImageURL,
		})
	}
	return out
}

type orderLineRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int32     `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Lines           []orderLineRequest  `json:"lines" validate:"required,min=1,dive"`
	Shipping        shippingInfoPayload `json:"shipping" validate:"required"`
	PaymentRef      string              `json:"payment_ref" validate:"max=200"`
	ClientRequestID string              `json:"client_request_id" validate:"max=100"`
}

// CreateOrder converts the request lines into a persisted order. Retries
// carrying the same client_request_id get the already-created order back;
// the response is 201 either way.
func (h *Handler) CreateOrder(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req createOrderRequest
	if err := h.bind(c, "order.create", &req); err != nil {
		return err
	}

	lines := make([]domain.OrderRequestLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderRequestLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), domain.CreateOrderParams{
		IdentityID: identityID,
		Lines:      lines,
		Shipping: domain.ShippingInfo{
			FullName:     req.Shipping.FullName,
			AddressLine1: req.Shipping.AddressLine1,
			AddressLine2: req.Shipping.AddressLine2,
			City:         req.Shipping.City,
			State:        req.Shipping.State,
			PostalCode:   req.Shipping.PostalCode,
			Country:      req.Shipping.Country,
			Phone:        req.Shipping.Phone,
		},
		PaymentRef:      req.PaymentRef,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toOrderResponse(*order))
}

// ListOrders returns the calling identity's orders, filtered by query params.
func (h *Handler) ListOrders(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}

	filter := domain.OrderFilter{IdentityID: &identityID}
	if v := c.QueryParam("status"); v != "" {
		status := domain.OrderStatus(v)
		if !domain.ValidOrderStatus(status) {
			return domain.Invalid("order.list", "unknown status")
		}
		filter.Status = &status
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.Invalid("order.list", "from must be RFC 3339")
		}
		filter.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.Invalid("order.list", "to must be RFC 3339")
		}
		filter.To = &t
	}

	orders, err := h.orders.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return c.JSON(http.StatusOK, out)
}

// ListFlaggedOrders returns orders awaiting manual inventory reconciliation.
func (h *Handler) ListFlaggedOrders(c echo.Context) error {
	orders, err := h.orders.ListReconciliationFlagged(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return c.JSON(http.StatusOK, out)
}

// GetOrder resolves :idOrNumber as a UUID first, then as an order number.
func (h *Handler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	ref := c.Param("idOrNumber")

	var (
		order *domain.Order
		err   error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		order, err = h.orders.GetOrder(ctx, id)
	} else {
		order, err = h.orders.GetOrderByNumber(ctx, ref)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*order))
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderStatus applies one fulfillment transition.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	id, err := parseID(c, "id", "order.update_status")
	if err != nil {
		return err
	}
	var req updateOrderStatusRequest
	if err := h.bind(c, "order.update_status", &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.Request().Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*order))
}

// CancelOrder moves a non-terminal order to cancelled. Inventory is left
// untouched; use restock afterwards when the goods are back on the shelf.
func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order.cancel")
	if err != nil {
		return err
	}
	order, err := h.orders.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*order))
}

// RefundOrder moves a shipped or delivered order to refunded.
func (h *Handler) RefundOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order.refund")
	if err != nil {
		return err
	}
	order, err := h.orders.Refund(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*order))
}

// RestockOrder restores inventory for a cancelled or refunded order.
// Always an explicit admin action, never triggered by the cancel itself.
func (h *Handler) RestockOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order.restock")
	if err != nil {
		return err
	}
	if err := h.orders.RestockOrder(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
