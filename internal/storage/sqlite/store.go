package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS skill_attributes (
	user_id      TEXT PRIMARY KEY,
	payload_json TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// Store provides SQLite-backed persistence for per-user skill attributes.
type Store struct {
	sqlDB *sql.DB
}

var _ attributes.Store = (*Store)(nil)

// Open opens the database at path and creates the attribute table.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetAttributes loads the attributes stored for userID. A user with no row
// gets an empty map.
func (s *Store) GetAttributes(ctx context.Context, userID string) (map[string]any, error) {
	if s == nil || s.sqlDB == nil {
		return nil, attributes.ErrNoStore
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, attributes.ErrUserIDRequired
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload_json FROM skill_attributes WHERE user_id = ?`,
		userID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attributes: %w", err)
	}

	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(payload), &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

// SaveAttributes upserts the attributes for userID.
func (s *Store) SaveAttributes(ctx context.Context, userID string, attrs map[string]any) error {
	if s == nil || s.sqlDB == nil {
		return attributes.ErrNoStore
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return attributes.ErrUserIDRequired
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO skill_attributes (user_id, payload_json, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`,
		userID, string(payload), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save attributes: %w", err)
	}
	return nil
}
