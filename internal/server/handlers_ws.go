package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pulsegate/pulsegate/internal/broadcast"
	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket attaches a client to its rooms. Query parameters:
// strategy (required), rooms (comma separated), credentials (passed to the
// strategy's verify hook when it has one).
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ctx := c.Request().Context()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.WarnContext(ctx, "Rejecting websocket connection", "ip", ip, "reason", reason)
		return c.JSON(429, map[string]string{"error": "connection limit exceeded"})
	}
	released := false
	release := func() {
		if !released {
			released = true
			s.limits.Release(ip)
		}
	}
	defer release()

	strategyName := c.QueryParam("strategy")
	strat, exists := s.strategies[strategyName]
	if !exists {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(400, map[string]string{"error": "unknown strategy"})
	}

	if verifier, isVerifier := strat.(domain.CredentialVerifier); isVerifier {
		if err := verifier.Verify(ctx, c.QueryParam("credentials")); err != nil {
			metrics.WebSocketConnectionsTotal.WithLabelValues("unauthorized").Inc()
			slog.WarnContext(ctx, "Websocket credential verification failed",
				"strategy", strategyName, "ip", ip, "error", err)
			return c.JSON(401, map[string]string{"error": "invalid credentials"})
		}
	}

	rooms := parseRooms(c.QueryParam("rooms"))

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		slog.ErrorContext(ctx, "Failed to upgrade websocket", "error", err)
		return nil
	}

	if err := s.hub.Register(conn, rooms); err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.WarnContext(ctx, "Failed to register websocket client", "error", err)
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()

	// Read pump, blocks until disconnect. Inbound frames are discarded:
	// clients only listen.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	release()
	return nil
}

// parseRooms splits the comma separated room list and applies the same
// name sanitization the emit path uses, so membership and delivery agree.
func parseRooms(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	rooms := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		rooms = append(rooms, broadcast.SanitizeRoomName(name))
	}
	return rooms
}
