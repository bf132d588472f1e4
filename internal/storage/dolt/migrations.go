//go:build cgo

// Package dolt - database migrations
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migration represents a single database migration.
type Migration struct {
	Name string
	Func func(context.Context, *sql.DB) error
}

// migrations is the ordered list of all migrations to run against an
// already-initialized database. Each is idempotent: it checks whether its
// change is needed before applying it, so re-running the list on every
// startup is safe.
var migrations = []Migration{
	{"embedding_column", migrateEmbeddingColumn},
	{"created_by_index", migrateCreatedByIndex},
}

// RunMigrations executes all registered migrations in order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range migrations {
		if err := migration.Func(ctx, db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}
	return nil
}

// columnExists checks if a column exists in the specified table using information_schema.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND column_name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, colType string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, colType))
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate column") ||
			strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

// migrateEmbeddingColumn backfills the embedding column for databases created
// before the vector index adapter shipped, so ListBlocks can always select it.
func migrateEmbeddingColumn(ctx context.Context, db *sql.DB) error {
	return addColumnIfNotExists(ctx, db, "memory_blocks", "embedding", "JSON")
}

// migrateCreatedByIndex adds an index on created_by for attribution queries,
// added after the initial schema shipped without one.
func migrateCreatedByIndex(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "CREATE INDEX idx_blocks_created_by ON memory_blocks(created_by)")
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate") &&
		!strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to create created_by index: %w", err)
	}
	return nil
}
