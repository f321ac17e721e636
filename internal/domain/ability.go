package domain

import "context"

// Ability answers capability checks for one room's permission set.
// Abilities are regenerated per room and never cached across rooms.
type Ability interface {
	Can(capabilityKey string) bool
}

// AbilityProvider is the permission evaluator consumed as a black box:
// permissions in, ability out. Generation may be I/O-bound.
type AbilityProvider interface {
	GenerateAbility(ctx context.Context, permissions []Permission) (Ability, error)
}
