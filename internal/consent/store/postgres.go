package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"parishnet/internal/consent/models"
	"parishnet/pkg/platform/tx"
	"parishnet/pkg/requestcontext"
)

// Postgres persists consent flags in the consents table. Methods join a
// transaction carried in ctx (see pkg/platform/tx).
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent registry.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Get(ctx context.Context, individualKey string) (models.Flags, error) {
	var f models.Flags
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT share_community, share_region, share_global
		FROM consents WHERE individual_key = $1
	`, individualKey).Scan(&f.ShareToCommunity, &f.ShareToRegion, &f.ShareToGlobal)
	if errors.Is(err, sql.ErrNoRows) {
		return models.None, nil
	}
	if err != nil {
		return models.None, fmt.Errorf("get consent: %w", err)
	}
	return f, nil
}

func (s *Postgres) GetMany(ctx context.Context, individualKeys []string) (map[string]models.Flags, error) {
	out := make(map[string]models.Flags, len(individualKeys))
	if len(individualKeys) == 0 {
		return out, nil
	}
	for _, key := range individualKeys {
		out[key] = models.None
	}
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT individual_key, share_community, share_region, share_global
		FROM consents WHERE individual_key = ANY($1)
	`, pq.Array(individualKeys))
	if err != nil {
		return nil, fmt.Errorf("get consents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var f models.Flags
		if err := rows.Scan(&key, &f.ShareToCommunity, &f.ShareToRegion, &f.ShareToGlobal); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		out[key] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return out, nil
}

// Set upserts the flags. The previous row is read in the same statement so the
// returned value is consistent with the write.
func (s *Postgres) Set(ctx context.Context, individualKey string, flags models.Flags) (models.Flags, error) {
	var prev models.Flags
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		WITH prev AS (
			SELECT share_community, share_region, share_global
			FROM consents WHERE individual_key = $1
			FOR UPDATE
		), upsert AS (
			INSERT INTO consents (individual_key, share_community, share_region, share_global, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (individual_key) DO UPDATE SET
				share_community = EXCLUDED.share_community,
				share_region = EXCLUDED.share_region,
				share_global = EXCLUDED.share_global,
				updated_at = EXCLUDED.updated_at
		)
		SELECT share_community, share_region, share_global FROM prev
	`, individualKey, flags.ShareToCommunity, flags.ShareToRegion, flags.ShareToGlobal, requestcontext.Now(ctx)).
		Scan(&prev.ShareToCommunity, &prev.ShareToRegion, &prev.ShareToGlobal)
	if errors.Is(err, sql.ErrNoRows) {
		return models.None, nil
	}
	if err != nil {
		return models.None, fmt.Errorf("set consent: %w", err)
	}
	return prev, nil
}

func (s *Postgres) Delete(ctx context.Context, individualKey string) error {
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM consents WHERE individual_key = $1`, individualKey); err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	return nil
}
