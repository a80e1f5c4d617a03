package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tsubaki/figura/internal/domain"
)

type itemResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	SKU                string    `json:"sku"`
	Category           string    `json:"category"`
	PriceCents         int64     `json:"price_cents"`
	OriginalPriceCents *int64    `json:"original_price_cents,omitempty"`
	DiscountPercent    int32     `json:"discount_percent"`
	Stock              int32     `json:"stock"`
	IsAvailable        bool      `json:"is_available"`
	Status             string    `json:"status"`
	Views              int64     `json:"views"`
	Purchases          int64     `json:"purchases"`
	WishlistAdds       int64     `json:"wishlist_adds"`
	RatingAverage      float64   `json:"rating_average"`
	RatingCount        int32     `json:"rating_count"`
	TrendingScore      float64   `json:"trending_score"`
	Tags               []string  `json:"tags,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
}

func toItemResponse(i domain.Item) itemResponse {
	return itemResponse{
		ID:                 i.ID,
		Name:               i.Name,
		Slug:               i.Slug,
		SKU:                i.SKU,
		Category:           i.Category,
		PriceCents:         i.PriceCents,
		OriginalPriceCents: i.OriginalPriceCents,
		DiscountPercent:    i.DiscountPercent,
		Stock:              i.Stock,
		IsAvailable:        i.IsAvailable,
		Status:             string(i.Status),
		Views:              i.Views,
		Purchases:          i.Purchases,
		WishlistAdds:       i.WishlistAdds,
		RatingAverage:      i.RatingAverage,
		RatingCount:        i.RatingCount,
		TrendingScore:      i.TrendingScore(),
		Tags:               i.Tags,
		ImageURL:           i.ImageURL,
	}
}

// ListItems handles GET /api/items with query-string filters.
func (h *Handler) ListItems(c echo.Context) error {
	filter, err := itemFilterFrom(c)
	if err != nil {
		return err
	}
	items, err := h.catalog.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return c.JSON(http.StatusOK, out)
}

func itemFilterFrom(c echo.Context) (domain.ItemFilter, error) {
	const op = "item.list"
	var filter domain.ItemFilter

	if v := c.QueryParam("category"); v != "" {
		filter.Category = &v
	}
	if v := c.QueryParam("tag"); v != "" {
		filter.Tag = &v
	}
	if v := c.QueryParam("min_price"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, domain.Invalid(op, "min_price must be an integer")
		}
		filter.MinPriceCents = &n
	}
	if v := c.QueryParam("max_price"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, domain.Invalid(op, "max_price must be an integer")
		}
		filter.MaxPriceCents = &n
	}
	if v := c.QueryParam("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, domain.Invalid(op, "min_rating must be a number")
		}
		filter.MinRating = &f
	}
	if c.QueryParam("available") == "1" {
		filter.AvailableOnly = true
	}
	if v := c.QueryParam("status"); v != "" {
		status := domain.ItemStatus(v)
		if !domain.ValidItemStatus(status) {
			return filter, domain.Invalid(op, "unknown status")
		}
		filter.Status = &status
	}
	if v := c.QueryParam("sort"); v != "" {
		filter.Sort = domain.ItemSort(v)
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			return filter, domain.Invalid(op, "limit must be a positive integer")
		}
		filter.Limit = int32(n)
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return filter, domain.Invalid(op, "offset must be a non-negative integer")
		}
		filter.Offset = int32(n)
	}
	return filter, nil
}

// GetItem returns one item by slug and records the view.
func (h *Handler) GetItem(c echo.Context) error {
	item, err := h.catalog.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toItemResponse(*item))
}

type createItemRequest struct {
	Name               string   `json:"name" validate:"required,max=200"`
	Slug               string   `json:"slug" validate:"omitempty,max=200"`
	SKU                string   `json:"sku" validate:"required,max=64"`
	Category           string   `json:"category" validate:"required"`
	PriceCents         int64    `json:"price_cents" validate:"required,gt=0"`
	OriginalPriceCents *int64   `json:"original_price_cents"`
	Stock              int32    `json:"stock" validate:"gte=0"`
	Status             string   `json:"status" validate:"omitempty,oneof=draft published archived out_of_stock"`
	Tags               []string `json:"tags"`
	ImageURL           string   `json:"image_url" validate:"omitempty,url"`
}

// CreateItem handles POST /api/items.
func (h *Handler) CreateItem(c echo.Context) error {
	var req createItemRequest
	if err := h.bind(c, "item.create", &req); err != nil {
		return err
	}

	created, err := h.catalog.Create(c.Request().Context(), domain.CreateItemParams{
		Name:               req.Name,
		Slug:               req.Slug,
		SKU:                req.SKU,
		Category:           req.Category,
		PriceCents:         req.PriceCents,
		OriginalPriceCents: req.OriginalPriceCents,
		Stock:              req.Stock,
		Status:             domain.ItemStatus(req.Status),
		Tags:               req.Tags,
		ImageURL:           req.ImageURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toItemResponse(*created))
}

type updateItemRequest struct {
	Name               *string  `json:"name" validate:"omitempty,max=200"`
	Slug               *string  `json:"slug" validate:"omitempty,max=200"`
	SKU                *string  `json:"sku" validate:"omitempty,max=64"`
	Category           *string  `json:"category"`
	PriceCents         *int64   `json:"price_cents" validate:"omitempty,gt=0"`
	OriginalPriceCents *int64   `json:"original_price_cents"`
	ClearOriginalPrice bool     `json:"clear_original_price"`
	Stock              *int32   `json:"stock" validate:"omitempty,gte=0"`
	Status             *string  `json:"status" validate:"omitempty,oneof=draft published archived out_of_stock"`
	Tags               []string `json:"tags"`
	ImageURL           *string  `json:"image_url" validate:"omitempty,url"`
}

// UpdateItem handles PATCH /api/items/:id.
func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := parseID(c, "id", "item.update")
	if err != nil {
		return err
	}
	var req updateItemRequest
	if err := h.bind(c, "item.update", &req); err != nil {
		return err
	}

	params := domain.UpdateItemParams{
		Name:               req.Name,
		Slug:               req.Slug,
		SKU:                req.SKU,
		Category:           req.Category,
		PriceCents:         req.PriceCents,
		OriginalPriceCents: req.OriginalPriceCents,
		ClearOriginalPrice: req.ClearOriginalPrice,
		Stock:              req.Stock,
		Tags:               req.Tags,
		ImageURL:           req.ImageURL,
	}
	if req.Status != nil {
		status := domain.ItemStatus(*req.Status)
		params.Status = &status
	}

	updated, err := h.catalog.Update(c.Request().Context(), id, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toItemResponse(*updated))
}

// DeleteItem archives an item.
func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := parseID(c, "id", "item.delete")
	if err != nil {
		return err
	}
	if err := h.catalog.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddToWishlist bumps the wishlist counter for an item.
func (h *Handler) AddToWishlist(c echo.Context) error {
	id, err := parseID(c, "id", "item.wishlist")
	if err != nil {
		return err
	}
	if err := h.catalog.IncrementWishlist(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type restockRequest struct {
	Quantity int32 `json:"quantity" validate:"required,gt=0"`
}

// RestockItem adds stock back to an item. Restocking is always an
// explicit admin action; nothing in the order flow calls it.
func (h *Handler) RestockItem(c echo.Context) error {
	id, err := parseID(c, "id", "item.restock")
	if err != nil {
		return err
	}
	var req restockRequest
	if err := h.bind(c, "item.restock", &req); err != nil {
		return err
	}
	if err := h.catalog.RestoreStock(c.Request().Context(), id, req.Quantity); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
