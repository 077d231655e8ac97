package migration

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"csvinsight/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the history schema. Every step is idempotent.
type MigrationRunner struct {
	version string
	driver  string
}

// NewRunner creates a runner for the given driver ("postgres" or "sqlite")
func NewRunner(driver string) *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		driver:  driver,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analyses table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// Report JSON is kept as TEXT on both dialects; JSONB would reorder the
// column keys of the stored metrics.
func (r *MigrationRunner) createAnalysesTable(ctx context.Context, db *sqlx.DB) error {
	idType, tsType, tsDefault := "TEXT", "TIMESTAMP", "CURRENT_TIMESTAMP"
	switch r.driver {
	case "postgres":
		idType, tsType, tsDefault = "UUID", "TIMESTAMP WITH TIME ZONE", "NOW()"
	case "sqlite":
	default:
		return errors.ConfigInvalid("unsupported migration driver: " + r.driver)
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS analyses (
			id %s PRIMARY KEY,
			filename TEXT NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			column_count INTEGER NOT NULL DEFAULT 0,
			health_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			report_json TEXT NOT NULL,
			result_json TEXT NOT NULL,
			provider VARCHAR(50) NOT NULL DEFAULT '',
			model VARCHAR(100) NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at %s NOT NULL DEFAULT %s
		)
	`, idType, tsType, tsDefault))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at DESC)`)
	return err
}
