package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pulsegate/pulsegate/internal/domain"
)

// AdminSession is an active admin panel session. Sessions are recorded by
// the host application on login and expire on their own; the strategy only
// reads them.
type AdminSession struct {
	ID          uuid.UUID
	Role        string
	SuperAdmin  bool
	Permissions []domain.Permission
}

// SessionStore lists the active admin sessions.
type SessionStore interface {
	ActiveSessions(ctx context.Context) ([]AdminSession, error)
}

// Admin derives one room per active admin role. Super-admin rooms are
// full-access; every other role gets a scoped room carrying the role's
// permission set.
type Admin struct {
	sessions SessionStore
}

func NewAdmin(sessions SessionStore) *Admin {
	return &Admin{sessions: sessions}
}

func (a *Admin) Name() string { return "admin" }

func (a *Admin) Rooms(ctx context.Context) ([]domain.Room, error) {
	sessions, err := a.sessions.ActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active admin sessions: %w", err)
	}

	seen := make(map[string]bool, len(sessions))
	rooms := make([]domain.Room, 0, len(sessions))
	for _, s := range sessions {
		if seen[s.Role] {
			continue
		}
		seen[s.Role] = true

		roomType := domain.RoomScoped
		if s.SuperAdmin {
			roomType = domain.RoomFullAccess
		}
		rooms = append(rooms, domain.Room{
			Name:        "admin " + s.Role,
			Type:        roomType,
			Permissions: s.Permissions,
		})
	}
	return rooms, nil
}

func (a *Admin) RoomName(room domain.Room) string { return room.Name }
