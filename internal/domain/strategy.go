package domain

import "context"

// Strategy enumerates the rooms currently interested in an event and
// derives wire room names. Strategies are registered once at process start;
// broadcast iteration follows registration order.
type Strategy interface {
	// Name identifies the strategy in auth contexts and logs.
	Name() string
	// Rooms enumerates the interested rooms. May involve I/O (e.g. reading
	// active sessions) and is called fresh on every broadcast.
	Rooms(ctx context.Context) ([]Room, error)
	// RoomName derives the wire room name for a room.
	RoomName(room Room) string
}

// CredentialVerifier is optionally implemented by strategies that can
// verify connection credentials during the websocket attach handshake.
type CredentialVerifier interface {
	Verify(ctx context.Context, credentials any) error
}

// CredentialIssuer is optionally implemented by strategies that attach
// per-room credentials to the sanitization context.
type CredentialIssuer interface {
	Credentials(room Room) any
}

// VerifyFunc verifies opaque credentials on behalf of a strategy.
type VerifyFunc func(ctx context.Context, credentials any) error

// AuthContext identifies on whose behalf payload data is being shaped.
type AuthContext struct {
	Strategy    string
	Ability     Ability
	Verify      VerifyFunc
	Credentials any
}
