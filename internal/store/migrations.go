package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/syntheo/syntheo/pkg/types"
)

const (
	// CurrentSchemaVersion tracks the database schema version, stored in
	// the metadata table under schemaVersionKey.
	CurrentSchemaVersion = "1.0.0"

	schemaVersionKey = "schema_version"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
	},
}

const migrationV1Up = `
-- Key/value metadata, including the schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Per-file summaries
CREATE TABLE IF NOT EXISTS files (
    file_path TEXT PRIMARY KEY,
    file_hash TEXT NOT NULL,
    language TEXT,
    size_bytes INTEGER DEFAULT 0,
    line_count INTEGER DEFAULT 0,
    last_indexed INTEGER DEFAULT 0,
    block_count INTEGER DEFAULT 0,
    is_deleted INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);

-- The authoritative block catalog
CREATE TABLE IF NOT EXISTS code_blocks (
    block_id TEXT PRIMARY KEY,
    file_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    block_type TEXT NOT NULL,
    language TEXT,
    symbol_name TEXT,
    parent_symbol TEXT,
    chunk_index INTEGER DEFAULT 0,
    tokens INTEGER DEFAULT 0,
    created_at INTEGER DEFAULT 0,
    updated_at INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_blocks_file ON code_blocks(file_path);
CREATE INDEX IF NOT EXISTS idx_blocks_type ON code_blocks(block_type);
CREATE INDEX IF NOT EXISTS idx_blocks_language ON code_blocks(language);
CREATE INDEX IF NOT EXISTS idx_blocks_symbol ON code_blocks(symbol_name);

-- ANN label to block mapping. Labels are monotonic and never reused.
CREATE TABLE IF NOT EXISTS vector_map (
    label INTEGER PRIMARY KEY,
    block_id TEXT NOT NULL UNIQUE
);

-- Append-only query observability ring
CREATE TABLE IF NOT EXISTS search_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query_hash TEXT NOT NULL,
    query TEXT NOT NULL,
    result_count INTEGER DEFAULT 0,
    avg_score REAL DEFAULT 0,
    execution_time_ms INTEGER DEFAULT 0,
    timestamp INTEGER DEFAULT 0
);

-- Full-text index over block content and symbol names
CREATE VIRTUAL TABLE IF NOT EXISTS code_fts USING fts5(
    block_id UNINDEXED,
    file_path UNINDEXED,
    content,
    symbol_name,
    tokenize='porter unicode61'
);
`

// ApplyMigrations brings the schema up to CurrentSchemaVersion. A store
// written by a newer build is refused, never auto-wiped.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	stored, err := storedSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	current := semver.MustParse(CurrentSchemaVersion)
	if stored != nil && stored.GreaterThan(current) {
		return fmt.Errorf("%w: schema version %s is newer than supported %s (run clear to rebuild)",
			types.ErrStoreCorrupt, stored, current)
	}

	for _, m := range AllMigrations {
		v := semver.MustParse(m.Version)
		if stored != nil && !v.GreaterThan(stored) {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersionKey, CurrentSchemaVersion)
	return err
}

// storedSchemaVersion reads the schema version already on disk, or nil for
// a fresh database.
func storedSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'metadata'`).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreCorrupt, err)
	}
	if exists == 0 {
		return nil, nil
	}

	var raw string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, schemaVersionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreCorrupt, err)
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable schema version %q", types.ErrStoreCorrupt, raw)
	}
	return v, nil
}
