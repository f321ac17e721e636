package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulsegate/pulsegate/internal/platform/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleReadiness checks the backing stores. Relay state is reported but
// never fails the probe: a degraded relay still serves local clients.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"redis", s.checkRedis},
		{"postgres", s.checkPostgres},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
				"relay_state":  s.relay.State().String(),
			})
		}
	}

	return c.JSON(200, map[string]any{
		"status":      "ready",
		"relay_state": s.relay.State().String(),
	})
}

func (s *Server) checkRedis(ctx context.Context) error {
	return s.redisPing.Ping(ctx).Err()
}

func (s *Server) checkPostgres(ctx context.Context) error {
	if s.pgPing == nil {
		return nil
	}
	return s.pgPing.Ping(ctx)
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
