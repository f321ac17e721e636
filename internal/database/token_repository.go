package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/strategy"
)

// tokenColumns must match the Scan order in scanToken.
const tokenColumns = `id, name, kind, key_hash, permissions`

// TokenRepo implements strategy.TokenRepository backed by PostgreSQL.
type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

var _ strategy.TokenRepository = (*TokenRepo)(nil)

func (r *TokenRepo) List(ctx context.Context) ([]strategy.APIToken, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT `+tokenColumns+` FROM api_tokens ORDER BY created_at`)
	metrics.DBQueryDuration.WithLabelValues("list_tokens").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("list_tokens").Inc()
		return nil, fmt.Errorf("query api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []strategy.APIToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			metrics.DBErrorsTotal.WithLabelValues("list_tokens").Inc()
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		metrics.DBErrorsTotal.WithLabelValues("list_tokens").Inc()
		return nil, fmt.Errorf("iterate api tokens: %w", err)
	}
	return tokens, nil
}

func (r *TokenRepo) GetByKeyHash(ctx context.Context, keyHash string) (*strategy.APIToken, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM api_tokens WHERE key_hash = $1`, keyHash)
	token, err := scanToken(row)
	metrics.DBQueryDuration.WithLabelValues("get_token").Observe(time.Since(start).Seconds())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("get_token").Inc()
		return nil, err
	}
	return &token, nil
}

func scanToken(row pgx.Row) (strategy.APIToken, error) {
	var token strategy.APIToken
	var kind string
	var permissionsJSON []byte

	if err := row.Scan(&token.ID, &token.Name, &kind, &token.KeyHash, &permissionsJSON); err != nil {
		return strategy.APIToken{}, fmt.Errorf("scan api token: %w", err)
	}

	token.Kind = strategy.TokenKind(kind)
	if len(permissionsJSON) > 0 {
		var permissions []domain.Permission
		if err := json.Unmarshal(permissionsJSON, &permissions); err != nil {
			return strategy.APIToken{}, fmt.Errorf("unmarshal token permissions: %w", err)
		}
		token.Permissions = permissions
	}
	return token, nil
}
