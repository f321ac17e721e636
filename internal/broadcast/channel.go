package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pulsegate/pulsegate/internal/hub"
	"github.com/pulsegate/pulsegate/internal/relay"
)

// wireFrame is the message clients receive.
type wireFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Publisher relays envelopes to other processes. *relay.Selector is the
// production implementation.
type Publisher interface {
	Publish(ctx context.Context, env relay.Envelope)
}

// Channel is the uniform emit surface over the local hub and the
// cross-process relay, independent of the relay adapter state.
type Channel struct {
	hub   *hub.Hub
	relay Publisher
}

func NewChannel(h *hub.Hub, r Publisher) *Channel {
	return &Channel{hub: h, relay: r}
}

// SanitizeRoomName replaces the first space with a hyphen to keep room
// identifiers transport-safe. Only the first occurrence is replaced; names
// with multiple spaces keep the remaining ones. Downstream room-naming
// conventions depend on this exact transform.
func SanitizeRoomName(name string) string {
	return strings.Replace(name, " ", "-", 1)
}

// EmitToRoom delivers an event to one room. Fire-and-forget: no delivery
// acknowledgment, no backpressure signal to the caller.
func (c *Channel) EmitToRoom(ctx context.Context, roomName, eventName string, data any) {
	c.emit(ctx, eventName, data, []string{SanitizeRoomName(roomName)})
}

// EmitRaw delivers an event scoped by rooms: an empty list broadcasts to
// every connected client; multiple names reach only clients that are
// members of ALL of them (chained-scope semantics, not a union).
func (c *Channel) EmitRaw(ctx context.Context, eventName string, data any, rooms []string) {
	sanitized := make([]string, len(rooms))
	for i, room := range rooms {
		sanitized[i] = SanitizeRoomName(room)
	}
	c.emit(ctx, eventName, data, sanitized)
}

func (c *Channel) emit(ctx context.Context, eventName string, data any, rooms []string) {
	frame, err := json.Marshal(wireFrame{Event: eventName, Data: data})
	if err != nil {
		slog.Error("Failed to marshal wire frame", "event", eventName, "error", err)
		return
	}

	c.hub.Emit(rooms, frame)
	c.relay.Publish(ctx, relay.Envelope{Event: eventName, Rooms: rooms, Data: frame})
}
