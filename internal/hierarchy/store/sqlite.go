package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"parishnet/internal/hierarchy/models"
	"parishnet/pkg/platform/sentinel"
)

// SQLite is a single-file entity store for local and small deployments.
// The pure-Go driver keeps the binary cgo-free.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path. Use ":memory:"
// for an ephemeral store.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "parishnet.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across pool connections.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entities (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			parent_kind TEXT,
			parent_key TEXT,
			payload BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (kind, key)
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entities table: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS entities_parent_idx ON entities (parent_kind, parent_key)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create parent index: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, entity *models.Entity) error {
	payload, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	parentKind, parentKey := parentColumns(entity)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (kind, key, parent_kind, parent_key, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET
			parent_kind = excluded.parent_kind,
			parent_key = excluded.parent_key,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(entity.Kind), entity.Key, parentKind, parentKey, payload, entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put %s: %w", entity.Kind, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM entities WHERE kind = ? AND key = ?`, string(kind), key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return decodeEntity(payload)
}

func (s *SQLite) GetMany(ctx context.Context, kind models.Kind, keys []string) ([]*models.Entity, error) {
	if len(keys) == 0 {
		return []*models.Entity{}, nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, string(kind))
	for _, key := range keys {
		args = append(args, key)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM entities WHERE kind = ? AND key IN (`+placeholders+`) ORDER BY key`, args...)
	if err != nil {
		return nil, fmt.Errorf("get many %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]*models.Entity, 0, len(keys))
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		e, err := decodeEntity(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return out, nil
}

func (s *SQLite) ListChildren(ctx context.Context, parentKind models.Kind, parentKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM entities WHERE parent_kind = ? AND parent_key = ? ORDER BY key`,
		string(parentKind), parentKey)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parentKind, err)
	}
	defer func() { _ = rows.Close() }()
	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan child key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return keys, nil
}

func (s *SQLite) Delete(ctx context.Context, kind models.Kind, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND key = ?`, string(kind), key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
