// Package api exposes the storefront over HTTP: categories, catalog items,
// the server-of-record cart, and orders. Handlers translate between JSON and
// the domain services; all business rules live below this layer.
package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tsubaki/figura/internal/domain"
)

// identityHeader carries the authenticated identity id, set by the gateway
// in front of this service. Identity verification is out of scope here.
const identityHeader = "X-Identity-Id"

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	categories domain.CategoryService
	catalog    domain.CatalogService
	cart       domain.CartBackend
	orders     domain.OrderService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(categories domain.CategoryService, catalog domain.CatalogService, cart domain.CartBackend, orders domain.OrderService, logger zerolog.Logger) *Handler {
	return &Handler{
		categories: categories,
		catalog:    catalog,
		cart:       cart,
		orders:     orders,
		validate:   validator.New(),
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes mounts every endpoint under /api.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/categories", h.ListCategories)
	api.GET("/categories/:slug", h.GetCategory)
	api.POST("/categories", h.CreateCategory)
	api.PATCH("/categories/:id", h.UpdateCategory)
	api.DELETE("/categories/:id", h.DeleteCategory)

	api.GET("/items", h.ListItems)
	api.GET("/items/:slug", h.GetItem)
	api.POST("/items", h.CreateItem)
	api.PATCH("/items/:id", h.UpdateItem)
	api.DELETE("/items/:id", h.DeleteItem)
	api.POST("/items/:id/wishlist", h.AddToWishlist)
	api.POST("/items/:id/restock", h.RestockItem)

	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", h.AddCartItem)
	api.PATCH("/cart/items/:itemId", h.SetCartQuantity)
	api.DELETE("/cart/items/:itemId", h.RemoveCartItem)
	api.DELETE("/cart", h.ClearCart)

	api.POST("/orders", h.CreateOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/flagged", h.ListFlaggedOrders)
	api.GET("/orders/:idOrNumber", h.GetOrder)
	api.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.POST("/orders/:id/refund", h.RefundOrder)
	api.POST("/orders/:id/restock", h.RestockOrder)
}

// ErrorHandler maps domain error codes to HTTP statuses. Internal and
// integrity details never reach the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.Code, map[string]any{"error": httpErr.Message})
			return
		}

		code := domain.ErrorCode(err)
		status := statusFor(code)
		if status >= 500 {
			logger.Error().Err(err).Str("code", code).Str("op", domain.ErrorOp(err)).Msg("request failed")
		}

		_ = c.JSON(status, map[string]any{
			"error": domain.ErrorMessage(err),
			"code":  code,
		})
	}
}

func statusFor(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	default:
		// EINTERNAL, EINTEGRITY, EPARTIAL
		return http.StatusInternalServerError
	}
}

// bind decodes and validates a JSON request body.
func (h *Handler) bind(c echo.Context, op string, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Invalid(op, "Malformed request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.Invalid(op, "Request validation failed: "+err.Error())
	}
	return nil
}

// identityFrom reads the identity header; the cart and order endpoints are
// unusable anonymously.
func identityFrom(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(identityHeader)
	if raw == "" {
		return uuid.Nil, domain.ErrAuthenticationRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrAuthenticationRequired
	}
	return id, nil
}

func parseID(c echo.Context, param, op string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, domain.Invalid(op, "Invalid id")
	}
	return id, nil
}
