//go:build cgo

package dolt

import (
	"context"
	"fmt"
)

// Conflict describes one unresolved merge conflict row surfaced by Dolt's
// dolt_conflicts_* system tables after a DOLT_MERGE that could not auto-resolve.
type Conflict struct {
	Table      string
	OurValue   string
	TheirValue string
	BaseValue  string
}

// DiffEntry summarizes the row-level change count for one table between two
// revisions, as reported by dolt_diff_summary.
type DiffEntry struct {
	Table        string
	RowsAdded    int
	RowsDeleted  int
	RowsModified int
}

// GetConflicts enumerates unresolved conflicts across the tables this backend
// writes to, by querying each table's dolt_conflicts_<table> system view.
func (s *DoltStore) GetConflicts(ctx context.Context) ([]Conflict, error) {
	tables := []string{"memory_blocks", "block_properties", "block_links", "block_proofs", "namespaces"}
	var conflicts []Conflict
	for _, table := range tables {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			"SELECT our_id, their_id, base_id FROM dolt_conflicts_%s", table))
		if err != nil {
			// The conflicts view only exists while a merge is in a conflicted state;
			// "doesn't exist" here just means this table has no conflicts.
			continue
		}
		for rows.Next() {
			var ours, theirs, base *string
			if err := rows.Scan(&ours, &theirs, &base); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan conflict for %s: %w", table, err)
			}
			c := Conflict{Table: table}
			if ours != nil {
				c.OurValue = *ours
			}
			if theirs != nil {
				c.TheirValue = *theirs
			}
			if base != nil {
				c.BaseValue = *base
			}
			conflicts = append(conflicts, c)
		}
		rows.Close()
	}
	return conflicts, nil
}

// ListBranches returns the names of all local branches.
func (s *DoltStore) ListBranches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM dolt_branches")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, name)
	}
	return branches, rows.Err()
}

// Diff summarizes row-level changes between two revisions (branch names,
// commit hashes, or "HEAD"/"WORKING"/"STAGED") across this backend's tables.
func (s *DoltStore) Diff(ctx context.Context, fromRev, toRev string) ([]DiffEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, diff_type, COUNT(*) FROM dolt_diff(?, ?, '') GROUP BY table_name, diff_type",
		fromRev, toRev)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", fromRev, toRev, err)
	}
	defer rows.Close()

	byTable := make(map[string]*DiffEntry)
	for rows.Next() {
		var table, diffType string
		var count int
		if err := rows.Scan(&table, &diffType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan diff row: %w", err)
		}
		entry, ok := byTable[table]
		if !ok {
			entry = &DiffEntry{Table: table}
			byTable[table] = entry
		}
		switch diffType {
		case "added":
			entry.RowsAdded += count
		case "removed":
			entry.RowsDeleted += count
		case "modified":
			entry.RowsModified += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]DiffEntry, 0, len(byTable))
	for _, e := range byTable {
		entries = append(entries, *e)
	}
	return entries, nil
}

// Reset without hard unstages the given tables (all tables if none are
// named), leaving their working-set changes in place. hard performs
// DOLT_RESET --hard, discarding staged and working changes in every table;
// tables is then ignored.
func (s *DoltStore) Reset(ctx context.Context, tables []string, hard bool) error {
	if hard {
		if _, err := s.db.ExecContext(ctx, "CALL DOLT_RESET('--hard')"); err != nil {
			return fmt.Errorf("failed to hard reset: %w", err)
		}
		return nil
	}
	if len(tables) == 0 {
		if _, err := s.db.ExecContext(ctx, "CALL DOLT_RESET()"); err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}
		return nil
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "CALL DOLT_RESET(?)", table); err != nil {
			return fmt.Errorf("failed to reset table %s: %w", table, err)
		}
	}
	return nil
}

// AutoCommitAndPush commits any pending working-set changes with message and,
// if a remote is configured, pushes the commit. Returns whether anything was
// committed (a clean working set is not an error). This backs the
// StructuredMemoryBank auto-commit policy (see SPEC_FULL.md's persistence section).
func (s *DoltStore) AutoCommitAndPush(ctx context.Context, message string) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	if len(status.Staged) == 0 && len(status.Unstaged) == 0 {
		return false, nil
	}
	if err := s.Commit(ctx, message); err != nil {
		return false, err
	}
	if s.remote != "" {
		if err := s.Push(ctx); err != nil {
			return true, fmt.Errorf("committed but failed to push: %w", err)
		}
	}
	return true, nil
}
