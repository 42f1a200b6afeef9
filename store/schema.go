// Package store records search runs in a SQLite database: one row per run,
// one row per slot per generation, and the best candidate's weights.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    population_size INTEGER NOT NULL,
    generations INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    sensors INTEGER NOT NULL,
    motors INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    best_id INTEGER,
    best_fitness REAL,   -- NULL when the evaluation failed
    best_weights TEXT    -- JSON array, row major
);

CREATE TABLE IF NOT EXISTS selections (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    generation INTEGER NOT NULL,
    slot INTEGER NOT NULL,
    parent_id INTEGER NOT NULL,
    parent_fitness REAL,
    child_id INTEGER NOT NULL,
    child_fitness REAL,
    accepted INTEGER NOT NULL,
    PRIMARY KEY (run_id, generation, slot)
);
CREATE INDEX IF NOT EXISTS idx_selections_run ON selections(run_id, generation);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
