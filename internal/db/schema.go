// ABOUTME: Schema bootstrap for the threads, messages, and llm_calls tables
// ABOUTME: Provides idempotent creation, destructive recreate, and an existence check

package db

import (
	"context"
	"fmt"
)

const schema = `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		parent_thread_id TEXT REFERENCES threads(id),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS llm_calls (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES threads(id),
		model TEXT NOT NULL,
		prompt TEXT NOT NULL,
		cost TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_llm_calls_thread_id ON llm_calls(thread_id);
	CREATE INDEX IF NOT EXISTS idx_llm_calls_model ON llm_calls(model);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES threads(id),
		llm_call_id TEXT REFERENCES llm_calls(id),
		message TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id);
	CREATE INDEX IF NOT EXISTS idx_messages_thread_timestamp ON messages(thread_id, timestamp);
`

// dropSchema removes the tables in dependency order.
const dropSchema = `
	DROP TABLE IF EXISTS messages;
	DROP TABLE IF EXISTS llm_calls;
	DROP TABLE IF EXISTS threads;
`

// HasTables reports whether any user table exists in the database.
func (e *Engine) HasTables(ctx context.Context) (bool, error) {
	var count int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspecting schema: %w", err)
	}
	return count > 0, nil
}

// EnsureTablesExist creates the schema only on a database with no
// tables at all. It never migrates and never drops: if any table is
// already present, even a drifted one, it is a no-op.
func (e *Engine) EnsureTablesExist(ctx context.Context) error {
	exists, err := e.HasTables(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	e.logger.Info("schema created", "path", e.path)
	return nil
}

// CreateTables creates all tables. With force, existing tables are
// dropped first, destroying all stored data.
func (e *Engine) CreateTables(ctx context.Context, force bool) error {
	if force {
		if _, err := e.db.ExecContext(ctx, dropSchema); err != nil {
			return fmt.Errorf("dropping schema: %w", err)
		}
		e.logger.Warn("dropped existing tables", "path", e.path)
	}

	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
