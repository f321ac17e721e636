package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/strategy"
)

func setupTestStore(t *testing.T) *SessionStore {
	t.Helper()
	return NewSessionStore(setupTestClient(t))
}

func TestActiveSessions_Empty(t *testing.T) {
	store := setupTestStore(t)

	sessions, err := store.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestActivate_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := strategy.AdminSession{
		ID:         uuid.New(),
		Role:       "editor",
		SuperAdmin: true,
		Permissions: []domain.Permission{
			{Action: "api::article.article.update"},
		},
	}
	require.NoError(t, store.Activate(ctx, session))

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "editor", got.Role)
	assert.True(t, got.SuperAdmin)
	assert.Equal(t, session.Permissions, got.Permissions)
}

func TestActivate_SetsTTL(t *testing.T) {
	store := setupTestStore(t)
	client := store.rdb
	ctx := context.Background()

	session := strategy.AdminSession{ID: uuid.New(), Role: "editor"}
	require.NoError(t, store.Activate(ctx, session))

	ttl, err := client.TTL(ctx, sessionKey(session.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, sessionTTL)
}

func TestDeactivate_RemovesSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := strategy.AdminSession{ID: uuid.New(), Role: "editor"}
	require.NoError(t, store.Activate(ctx, session))
	require.NoError(t, store.Deactivate(ctx, session.ID))

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDeactivate_NonExistent(t *testing.T) {
	store := setupTestStore(t)

	assert.NoError(t, store.Deactivate(context.Background(), uuid.New()))
}

func TestActiveSessions_PaginatesAcrossScanBatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// More sessions than one SCAN batch returns.
	const total = 250
	for i := range total {
		session := strategy.AdminSession{
			ID:   uuid.New(),
			Role: fmt.Sprintf("role-%d", i),
		}
		require.NoError(t, store.Activate(ctx, session))
	}

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, total)
}

func TestActiveSessions_SkipsMalformedEntries(t *testing.T) {
	store := setupTestStore(t)
	client := store.rdb
	ctx := context.Background()

	good := strategy.AdminSession{ID: uuid.New(), Role: "editor"}
	require.NoError(t, store.Activate(ctx, good))

	// A key that matches the pattern but does not carry a session ID.
	require.NoError(t, client.HSet(ctx, "adminsession:not-a-uuid", fieldRole, "ghost").Err())

	// A session whose permissions field is not valid JSON.
	broken := uuid.New()
	require.NoError(t, client.HSet(ctx, sessionKey(broken), map[string]any{
		fieldRole:        "broken",
		fieldPermissions: "{nope",
	}).Err())

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, good.ID, sessions[0].ID)
}

func TestActiveSessions_SkipsKeysExpiredMidScan(t *testing.T) {
	store := setupTestStore(t)
	client := store.rdb
	ctx := context.Background()

	// An empty hash read looks exactly like a key that expired between
	// SCAN and HGETALL; the store must drop it rather than fabricate a
	// session.
	ghost := uuid.New()
	require.NoError(t, client.HSet(ctx, sessionKey(ghost), fieldRole, "ghost").Err())
	require.NoError(t, client.Del(ctx, sessionKey(ghost)).Err())

	live := strategy.AdminSession{ID: uuid.New(), Role: "editor"}
	require.NoError(t, store.Activate(ctx, live))

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.ID, sessions[0].ID)
}

func TestActivate_RefreshOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, store.Activate(ctx, strategy.AdminSession{ID: id, Role: "author"}))
	require.NoError(t, store.Activate(ctx, strategy.AdminSession{ID: id, Role: "editor", SuperAdmin: true}))

	sessions, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "editor", sessions[0].Role)
	assert.True(t, sessions[0].SuperAdmin)
}

func TestActiveSessions_CancelledContext(t *testing.T) {
	store := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ActiveSessions(ctx)
	assert.Error(t, err)
}
