package broadcast

import (
	"context"
	"fmt"

	"github.com/pulsegate/pulsegate/internal/domain"
)

// Decision is the outcome of gating one room.
type Decision struct {
	Admitted bool
	Ability  domain.Ability
}

// Gate decides, per room, whether an event is visible. Abilities are
// requested fresh for every room because each room's permission set
// differs.
type Gate struct {
	provider domain.AbilityProvider
}

func NewGate(provider domain.AbilityProvider) *Gate {
	return &Gate{provider: provider}
}

// Admit evaluates a room against an event. Full-access rooms admit before
// the capability check runs; scoped rooms admit only if their ability
// grants the event's capability key. Absence of an explicit permission
// never admits.
func (g *Gate) Admit(ctx context.Context, room domain.Room, schema domain.SchemaDescriptor, eventName string) (Decision, error) {
	ability, err := g.provider.GenerateAbility(ctx, projectPermissions(room.Permissions))
	if err != nil {
		// Full-access rooms see every event regardless of the evaluator's
		// response; everything else fails closed.
		if room.Type == domain.RoomFullAccess {
			return Decision{Admitted: true}, nil
		}
		return Decision{}, fmt.Errorf("generate ability: %w", err)
	}

	admitted := room.Type == domain.RoomFullAccess || ability.Can(schema.CapabilityKey(eventName))
	return Decision{Admitted: admitted, Ability: ability}, nil
}

// projectPermissions strips room-specific fields down to action-only
// tuples before they reach the evaluator.
func projectPermissions(permissions []domain.Permission) []domain.Permission {
	projected := make([]domain.Permission, len(permissions))
	for i, p := range permissions {
		projected[i] = domain.Permission{Action: p.Action}
	}
	return projected
}
