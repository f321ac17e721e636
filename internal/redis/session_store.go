package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/strategy"
)

const (
	fieldRole        = "role"
	fieldSuperAdmin  = "super_admin"
	fieldPermissions = "permissions"

	sessionTTL = 24 * time.Hour
)

// SessionStore records active admin sessions in Redis so every serving
// process can enumerate them during a broadcast.
type SessionStore struct {
	rdb *goredis.Client
}

func NewSessionStore(rdb *goredis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

var _ strategy.SessionStore = (*SessionStore)(nil)

// Activate records a session with a TTL; re-activating refreshes it.
func (s *SessionStore) Activate(ctx context.Context, session strategy.AdminSession) error {
	permissionsJSON, err := json.Marshal(session.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	sk := sessionKey(session.ID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, sk, map[string]any{
		fieldRole:        session.Role,
		fieldSuperAdmin:  session.SuperAdmin,
		fieldPermissions: string(permissionsJSON),
	})
	pipe.Expire(ctx, sk, sessionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Deactivate removes a session.
func (s *SessionStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}

// ActiveSessions lists every live admin session.
func (s *SessionStore) ActiveSessions(ctx context.Context) ([]strategy.AdminSession, error) {
	var sessions []strategy.AdminSession
	var cursor uint64

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session scan cancelled: %w", ctx.Err())
		default:
		}

		keys, nextCursor, err := s.rdb.Scan(ctx, cursor, "adminsession:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("session scan failed: %w", err)
		}

		for _, key := range keys {
			session, ok := s.readSession(ctx, key)
			if ok {
				sessions = append(sessions, session)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return sessions, nil
}

func (s *SessionStore) readSession(ctx context.Context, key string) (strategy.AdminSession, bool) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Error("ActiveSessions: failed to read session", "key", key, "error", err)
		}
		return strategy.AdminSession{}, false
	}
	if len(fields) == 0 {
		// Expired between SCAN and HGETALL.
		return strategy.AdminSession{}, false
	}

	id, err := uuid.Parse(strings.TrimPrefix(key, "adminsession:"))
	if err != nil {
		slog.Warn("ActiveSessions: invalid session key", "key", key, "error", err)
		return strategy.AdminSession{}, false
	}

	var permissions []domain.Permission
	if raw := fields[fieldPermissions]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &permissions); err != nil {
			slog.Warn("ActiveSessions: invalid permissions JSON", "key", key, "error", err)
			return strategy.AdminSession{}, false
		}
	}

	return strategy.AdminSession{
		ID:          id,
		Role:        fields[fieldRole],
		SuperAdmin:  fields[fieldSuperAdmin] == "1" || fields[fieldSuperAdmin] == "true",
		Permissions: permissions,
	}, true
}

func sessionKey(id uuid.UUID) string {
	return "adminsession:" + id.String()
}
