package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
)

const schema = `CREATE TABLE IF NOT EXISTS skill_attributes (
	user_id    TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store persists skill attributes in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ attributes.Store = (*Store)(nil)

// Open connects to connString, verifies the connection and creates the table.
func Open(ctx context.Context, connString string) (*Store, error) {
	if strings.TrimSpace(connString) == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// GetAttributes loads the attributes stored for userID.
func (s *Store) GetAttributes(ctx context.Context, userID string) (map[string]any, error) {
	if s == nil || s.pool == nil {
		return nil, attributes.ErrNoStore
	}
	if strings.TrimSpace(userID) == "" {
		return nil, attributes.ErrUserIDRequired
	}

	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM skill_attributes WHERE user_id = $1`, userID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attributes: %w", err)
	}

	attrs := map[string]any{}
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

// SaveAttributes upserts the attributes for userID.
func (s *Store) SaveAttributes(ctx context.Context, userID string, attrs map[string]any) error {
	if s == nil || s.pool == nil {
		return attributes.ErrNoStore
	}
	if strings.TrimSpace(userID) == "" {
		return attributes.ErrUserIDRequired
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO skill_attributes (user_id, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		userID, payload,
	)
	if err != nil {
		return fmt.Errorf("save attributes: %w", err)
	}
	return nil
}
