package server

import (
	"github.com/labstack/echo/v4"

	"github.com/pulsegate/pulsegate/internal/platform/logging"
)

// correlationMiddleware stamps each request context with a fresh
// correlation ID so every log line of the request can be tied together.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := logging.WithCorrelationID(c.Request().Context(), logging.NewCorrelationID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
