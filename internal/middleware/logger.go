// Package middleware provides the echo middlewares shared by every route:
// request logging and HTTP metrics.
package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request with method, path, status, and
// latency. Errors are logged by the central error handler, not here.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler set the final status first
				c.Error(err)
			}

			event := logger.Info()
			status := c.Response().Status
			if status >= 500 {
				event = logger.Error()
			} else if status >= 400 {
				event = logger.Warn()
			}

			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}
