package strategy

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/pulsegate/pulsegate/internal/domain"
)

// TokenKind distinguishes how much a token may see.
type TokenKind string

const (
	TokenFullAccess TokenKind = "full-access"
	TokenCustom     TokenKind = "custom"
)

// APIToken is an issued API token record. KeyHash is the hex-encoded
// SHA-256 of the token key; the key itself is never stored.
type APIToken struct {
	ID          uuid.UUID
	Name        string
	Kind        TokenKind
	KeyHash     string
	Permissions []domain.Permission
}

// TokenRepository reads issued API tokens.
type TokenRepository interface {
	List(ctx context.Context) ([]APIToken, error)
	GetByKeyHash(ctx context.Context, keyHash string) (*APIToken, error)
}

// APITokens derives one room per issued token. Full-access tokens get a
// full-access room; custom tokens get a scoped room carrying the token's
// permission list. The token's key hash travels as room credentials so the
// sanitizer can see on whose behalf it filters.
type APITokens struct {
	tokens TokenRepository
}

func NewAPITokens(tokens TokenRepository) *APITokens {
	return &APITokens{tokens: tokens}
}

func (s *APITokens) Name() string { return "api-token" }

func (s *APITokens) Rooms(ctx context.Context) ([]domain.Room, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}

	rooms := make([]domain.Room, 0, len(tokens))
	for _, t := range tokens {
		roomType := domain.RoomScoped
		if t.Kind == TokenFullAccess {
			roomType = domain.RoomFullAccess
		}
		rooms = append(rooms, domain.Room{
			Name:        t.Name,
			Type:        roomType,
			Permissions: t.Permissions,
			Credentials: t.KeyHash,
		})
	}
	return rooms, nil
}

func (s *APITokens) RoomName(room domain.Room) string { return room.Name }

// Credentials forwards the token key hash into the sanitization context.
func (s *APITokens) Credentials(room domain.Room) any { return room.Credentials }

// Verify checks a presented token key against the issued token records.
// Used by the websocket attach handshake.
func (s *APITokens) Verify(ctx context.Context, credentials any) error {
	key, ok := credentials.(string)
	if !ok || key == "" {
		return fmt.Errorf("api token credentials must be a non-empty string")
	}

	hash := HashKey(key)
	token, err := s.tokens.GetByKeyHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("look up api token: %w", err)
	}
	if token == nil || subtle.ConstantTimeCompare([]byte(token.KeyHash), []byte(hash)) != 1 {
		return fmt.Errorf("unknown api token")
	}
	return nil
}

// HashKey returns the hex-encoded SHA-256 of a token key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
