package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds every request's context so a stalled database or
// downstream call fails the request instead of holding it open. d <= 0
// disables the bound.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
