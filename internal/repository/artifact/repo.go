// Package artifact stores expiry registry entries in PostgreSQL, so scheduled
// deletions survive a restart and can be swept by a separate process.
package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/registry"
)

type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the artifacts table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS artifacts (
			area       TEXT        NOT NULL,
			name       TEXT        NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (area, name)
		);
		CREATE INDEX IF NOT EXISTS artifacts_expires_at_idx ON artifacts (expires_at);
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("schema: failed to create artifacts table: %w", err)
	}

	return nil
}

func (r *Repository) Save(ctx context.Context, e registry.Entry) error {
	query := `
		INSERT INTO artifacts (area, name, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (area, name) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	if _, err := r.db.ExecContext(ctx, query, e.Area, e.Name, e.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("save: failed to save artifact: %w", err)
	}

	return nil
}

func (r *Repository) SaveIfAbsent(ctx context.Context, e registry.Entry) (bool, error) {
	query := `
		INSERT INTO artifacts (area, name, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (area, name) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, e.Area, e.Name, e.ExpiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("adopt: failed to save artifact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adopt: failed to get number of rows affected: %w", err)
	}

	return n > 0, nil
}

func (r *Repository) SaveIfEarlier(ctx context.Context, e registry.Entry) error {
	query := `
		INSERT INTO artifacts (area, name, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (area, name) DO UPDATE SET expires_at = LEAST(artifacts.expires_at, EXCLUDED.expires_at)
	`

	if _, err := r.db.ExecContext(ctx, query, e.Area, e.Name, e.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("save: failed to move artifact deadline: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, area, name string) error {
	query := `
		DELETE FROM artifacts WHERE area = $1 AND name = $2
	`

	if _, err := r.db.ExecContext(ctx, query, area, name); err != nil {
		return fmt.Errorf("delete: failed to delete artifact: %w", err)
	}

	return nil
}

func (r *Repository) Due(ctx context.Context, now time.Time) ([]registry.Entry, error) {
	query := `
		SELECT area, name, expires_at
		FROM artifacts
		WHERE expires_at <= $1
		ORDER BY expires_at
	`

	rows, err := r.db.Master.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("due: failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var entries []registry.Entry
	for rows.Next() {
		var e registry.Entry
		if err := rows.Scan(&e.Area, &e.Name, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("due: failed to scan artifact: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due: failed to iterate artifacts: %w", err)
	}

	return entries, nil
}
