package server

import (
	"github.com/labstack/echo/v4"

	"github.com/pulsegate/pulsegate/internal/domain"
)

// ingestRequest is the payload the producing application posts when an
// entity changes.
type ingestRequest struct {
	Event  string `json:"event"`
	Schema struct {
		UID           string   `json:"uid"`
		SingularName  string   `json:"singular_name"`
		PrivateFields []string `json:"private_fields"`
	} `json:"schema"`
	Payload any `json:"payload"`
}

// handleIngestEvent hands a changed-entity event to the broadcaster. The
// response only acknowledges acceptance: per-room outcomes are deliberately
// invisible to the producer.
func (s *Server) handleIngestEvent(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "malformed request body"})
	}
	if req.Event == "" {
		return c.JSON(400, map[string]string{"error": "event is required"})
	}
	if req.Schema.UID == "" || req.Schema.SingularName == "" {
		return c.JSON(400, map[string]string{"error": "schema uid and singular_name are required"})
	}

	schema := domain.SchemaDescriptor{
		UID:           req.Schema.UID,
		SingularName:  req.Schema.SingularName,
		PrivateFields: req.Schema.PrivateFields,
	}
	s.broadcaster.Broadcast(c.Request().Context(), req.Event, schema, req.Payload)

	return c.JSON(202, map[string]string{"status": "accepted"})
}
