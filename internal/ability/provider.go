// Package ability provides the default permission evaluator: a capability
// set built from a room's permission list, with a default-deny posture.
// The broadcaster consumes it only through domain.AbilityProvider, so a
// different evaluator can be injected without touching the core.
package ability

import (
	"context"

	"github.com/pulsegate/pulsegate/internal/domain"
)

type capabilitySet map[string]struct{}

func (c capabilitySet) Can(capabilityKey string) bool {
	_, ok := c[capabilityKey]
	return ok
}

// Provider generates abilities from permission sets. An empty permission
// set yields an ability that grants nothing.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

var _ domain.AbilityProvider = (*Provider)(nil)

func (p *Provider) GenerateAbility(_ context.Context, permissions []domain.Permission) (domain.Ability, error) {
	set := make(capabilitySet, len(permissions))
	for _, permission := range permissions {
		if permission.Action == "" {
			continue
		}
		set[permission.Action] = struct{}{}
	}
	return set, nil
}
