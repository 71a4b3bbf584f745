package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"parishnet/internal/hierarchy/models"
	"parishnet/pkg/platform/sentinel"
	"parishnet/pkg/platform/tx"
)

// Postgres persists entities in the entities table. Methods join a
// transaction carried in ctx, which is how the aggregation engine reads the
// child set and writes the parent snapshot atomically.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed entity store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Put(ctx context.Context, entity *models.Entity) error {
	payload, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	parentKind, parentKey := parentColumns(entity)
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO entities (kind, key, parent_kind, parent_key, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, key) DO UPDATE SET
			parent_kind = EXCLUDED.parent_kind,
			parent_key = EXCLUDED.parent_key,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, string(entity.Kind), entity.Key, parentKind, parentKey, payload, entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put %s: %w", entity.Kind, err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error) {
	var payload []byte
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT payload FROM entities WHERE kind = $1 AND key = $2`,
		string(kind), key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return decodeEntity(payload)
}

// GetMany loads a batch in one round trip; unknown keys are skipped.
func (s *Postgres) GetMany(ctx context.Context, kind models.Kind, keys []string) ([]*models.Entity, error) {
	if len(keys) == 0 {
		return []*models.Entity{}, nil
	}
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT payload FROM entities WHERE kind = $1 AND key = ANY($2) ORDER BY key`,
		string(kind), pq.Array(keys),
	)
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

func (s *Postgres) ListChildren(ctx context.Context, parentKind models.Kind, parentKey string) ([]string, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT key FROM entities WHERE parent_kind = $1 AND parent_key = $2 ORDER BY key`,
		string(parentKind), parentKey,
	)
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

func (s *Postgres) Delete(ctx context.Context, kind models.Kind, key string) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM entities WHERE kind = $1 AND key = $2`, string(kind), key)
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

// PostgresLocker serializes work on one key across processes with a
// transaction-scoped advisory lock. The callback runs inside the transaction,
// so every store call made with the callback's ctx commits or rolls back
// together.
type PostgresLocker struct {
	db *sql.DB
}

func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

func (l *PostgresLocker) RunLocked(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if _, inTx := tx.From(ctx); inTx {
		if _, err := tx.Conn(ctx, l.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		return fn(ctx)
	}

	t, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()
	if _, err := t.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	if err := fn(tx.WithTx(ctx, t)); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
