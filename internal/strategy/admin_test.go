package strategy

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/domain"
)

type fakeSessionStore struct {
	sessions []AdminSession
	err      error
}

func (f *fakeSessionStore) ActiveSessions(context.Context) ([]AdminSession, error) {
	return f.sessions, f.err
}

func TestAdmin_OneRoomPerRole(t *testing.T) {
	store := &fakeSessionStore{sessions: []AdminSession{
		{ID: uuid.New(), Role: "editor", Permissions: []domain.Permission{{Action: "api::article.article.update"}}},
		{ID: uuid.New(), Role: "editor"},
		{ID: uuid.New(), Role: "viewer"},
	}}

	rooms, err := NewAdmin(store).Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "admin editor", rooms[0].Name)
	assert.Equal(t, "admin viewer", rooms[1].Name)
	assert.Equal(t, domain.RoomScoped, rooms[0].Type)
}

func TestAdmin_SuperAdminGetsFullAccessRoom(t *testing.T) {
	store := &fakeSessionStore{sessions: []AdminSession{
		{ID: uuid.New(), Role: "super", SuperAdmin: true},
	}}

	rooms, err := NewAdmin(store).Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomFullAccess, rooms[0].Type)
}

func TestAdmin_StoreErrorPropagates(t *testing.T) {
	store := &fakeSessionStore{err: fmt.Errorf("redis down")}

	_, err := NewAdmin(store).Rooms(context.Background())
	assert.Error(t, err)
}

func TestAdmin_RoomNamePassesThrough(t *testing.T) {
	a := NewAdmin(&fakeSessionStore{})
	assert.Equal(t, "admin editor", a.RoomName(domain.Room{Name: "admin editor"}))
	assert.Equal(t, "admin", a.Name())
}
