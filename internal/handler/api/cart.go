package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsubaki/figura/internal/domain"
)

type cartLineResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int32     `json:"quantity"`
	ImageURL       string    `json:"image_url,omitempty"`
}

type cartResponse struct {
	Lines         []cartLineResponse `json:"lines"`
	ItemCount     int32              `json:"item_count"`
	SubtotalCents int64              `json:"subtotal_cents"`
	Revision      uint64             `json:"revision"`
}

func toCartResponse(snap *domain.CartSnapshot) cartResponse {
	out := cartResponse{
		Lines:         make([]cartLineResponse, 0, len(snap.Lines)),
		ItemCount:     snap.ItemCount(),
		SubtotalCents: snap.Subtotal(),
		Revision:      snap.Revision,
	}
	for _, l := range snap.Lines {
		out.Lines = append(out.Lines, cartLineResponse{
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

// GetCart returns the authoritative cart for the calling identity.
func (h *Handler) GetCart(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	snap, err := h.cart.Fetch(c.Request().Context(), identityID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(snap))
}

type addCartItemRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int32     `json:"quantity" validate:"required,gt=0"`
}

// AddCartItem merges quantity into the identity's line for an item.
func (h *Handler) AddCartItem(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req addCartItemRequest
	if err := h.bind(c, "cart.add", &req); err != nil {
		return err
	}
	snap, err := h.cart.AddItem(c.Request().Context(), identityID, req.ItemID, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(snap))
}

type setCartQuantityRequest struct {
	Quantity int32 `json:"quantity" validate:"gte=0"`
}

// SetCartQuantity replaces a line's quantity. Zero removes the line.
func (h *Handler) SetCartQuantity(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "itemId", "cart.set_quantity")
	if err != nil {
		return err
	}
	var req setCartQuantityRequest
	if err := h.bind(c, "cart.set_quantity", &req); err != nil {
		return err
	}
	snap, err := h.cart.SetQuantity(c.Request().Context(), identityID, itemID, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(snap))
}

// RemoveCartItem deletes a line.
func (h *Handler) RemoveCartItem(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "itemId", "cart.remove")
	if err != nil {
		return err
	}
	snap, err := h.cart.RemoveItem(c.Request().Context(), identityID, itemID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(snap))
}

// ClearCart deletes every line for the identity.
func (h *Handler) ClearCart(c echo.Context) error {
	identityID, err := identityFrom(c)
	if err != nil {
		return err
	}
	if err := h.cart.Clear(c.Request().Context(), identityID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
