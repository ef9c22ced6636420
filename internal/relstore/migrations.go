package relstore

import (
	"context"
	"database/sql"
	"fmt"
)

// migration represents a single schema migration.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// New migrations are appended at the end; never modify existing entries.
var migrations = []migration{
	{
		version:     1,
		description: "extraction workflow bookkeeping",
		apply: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS workflows (
					id TEXT PRIMARY KEY,
					investigation_id TEXT NOT NULL,
					document_id TEXT NOT NULL,
					storage_key TEXT NOT NULL,
					filename TEXT NOT NULL,
					content_type TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					error TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)
			`); err != nil {
				return err
			}
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS workflow_steps (
					workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
					step_name TEXT NOT NULL,
					status TEXT NOT NULL,
					output JSONB,
					error TEXT NOT NULL DEFAULT '',
					started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					finished_at TIMESTAMPTZ,
					PRIMARY KEY (workflow_id, step_name)
				)
			`); err != nil {
				return err
			}
			_, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_workflows_investigation
				ON workflows (investigation_id)
			`)
			return err
		},
	},
	{
		version:     2,
		description: "investigation notebooks",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS investigation_notebooks (
					id UUID PRIMARY KEY,
					investigation_id TEXT NOT NULL UNIQUE,
					canvas_doc JSONB NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)
			`)
			return err
		},
	},
}

// Migrate runs all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		s.logger.Info("Applying migration %d: %s", m.version, m.description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES ($1, $2)",
			m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}

	return nil
}
