package journal

import (
	"database/sql"
	"fmt"
)

const createSyncRunsTable = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	state       TEXT NOT NULL,
	from_rev    TEXT NOT NULL DEFAULT '',
	to_rev      TEXT NOT NULL DEFAULT '',
	upserts     INTEGER NOT NULL DEFAULT 0,
	deletes     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	generation  INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
)`

const createStartedAtIndex = `CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at)`

// createSchema creates the journal tables in one transaction.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range []string{createSyncRunsTable, createStartedAtIndex} {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create journal schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}
