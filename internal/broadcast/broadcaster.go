package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/metrics"
)

// Emitter is the room-scoped emit surface the broadcaster drives.
// *Channel is the production implementation.
type Emitter interface {
	EmitToRoom(ctx context.Context, roomName, eventName string, data any)
}

// Broadcaster is the orchestration entry point: given a changed-entity
// event it drives the strategy set, the authorization gate, and the
// payload pipeline, and emits per admitted room.
type Broadcaster struct {
	emitter     Emitter
	gate        *Gate
	pipeline    *Pipeline
	strategies  []domain.Strategy
	clock       clockwork.Clock
	roomTimeout time.Duration
}

// NewBroadcaster wires the orchestrator. Strategy iteration follows the
// order of the given slice on every broadcast. roomTimeout bounds ability
// generation plus payload shaping for one room, measured on the given
// clock; expiry is treated as a deny for that room only.
func NewBroadcaster(emitter Emitter, gate *Gate, pipeline *Pipeline, strategies []domain.Strategy, clock clockwork.Clock, roomTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		emitter:     emitter,
		gate:        gate,
		pipeline:    pipeline,
		strategies:  strategies,
		clock:       clock,
		roomTimeout: roomTimeout,
	}
}

// Broadcast evaluates every registered strategy's rooms against the event
// and emits the per-viewer payload to each admitted room. A nil payload is
// a defined no-op. Per-room and per-strategy failures are logged and
// skipped; Broadcast itself never fails because of them.
func (b *Broadcaster) Broadcast(ctx context.Context, eventName string, schema domain.SchemaDescriptor, payload any) {
	if payload == nil {
		metrics.BroadcastsTotal.WithLabelValues("no_payload").Inc()
		return
	}
	metrics.BroadcastsTotal.WithLabelValues("processed").Inc()

	wireEvent := schema.WireEvent(eventName)

	for _, strat := range b.strategies {
		rooms, err := strat.Rooms(ctx)
		if err != nil {
			metrics.StrategyFailures.WithLabelValues(strat.Name()).Inc()
			slog.ErrorContext(ctx, "Strategy room enumeration failed, skipping strategy",
				"strategy", strat.Name(), "event", wireEvent, "error", err)
			continue
		}

		for _, room := range rooms {
			b.processRoom(ctx, strat, room, schema, eventName, wireEvent, payload)
		}
	}
}

func (b *Broadcaster) processRoom(ctx context.Context, strat domain.Strategy, room domain.Room, schema domain.SchemaDescriptor, eventName, wireEvent string, payload any) {
	roomCtx, cancel := clockwork.WithTimeout(ctx, b.clock, b.roomTimeout)
	defer cancel()

	decision, err := b.gate.Admit(roomCtx, room, schema, eventName)
	if err != nil {
		// Evaluator failure is a deny, not an error surfaced to the caller.
		b.countRoomFailure(roomCtx, err)
		metrics.GateDecisions.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "Authorization failed, denying room",
			"strategy", strat.Name(), "room", room.Name, "schema", schema.UID, "error", err)
		return
	}
	if !decision.Admitted {
		metrics.GateDecisions.WithLabelValues("deny").Inc()
		return
	}
	metrics.GateDecisions.WithLabelValues("admit").Inc()

	auth := domain.AuthContext{
		Strategy: strat.Name(),
		Ability:  decision.Ability,
	}
	if verifier, ok := strat.(domain.CredentialVerifier); ok {
		auth.Verify = verifier.Verify
	}
	if issuer, ok := strat.(domain.CredentialIssuer); ok {
		auth.Credentials = issuer.Credentials(room)
	}

	wirePayload, err := b.pipeline.Run(roomCtx, payload, schema, auth)
	if err != nil {
		b.countRoomFailure(roomCtx, err)
		metrics.PipelineFailures.Inc()
		slog.ErrorContext(ctx, "Payload pipeline failed, skipping room",
			"strategy", strat.Name(), "room", room.Name, "schema", schema.UID, "error", err)
		return
	}

	b.emitter.EmitToRoom(ctx, strat.RoomName(room), wireEvent, wirePayload)
	metrics.EmissionsTotal.Inc()
}

func (b *Broadcaster) countRoomFailure(ctx context.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.RoomTimeouts.Inc()
	}
}
