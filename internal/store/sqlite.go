// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides account and chat log persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL UNIQUE COLLATE NOCASE,
			nickname       TEXT UNIQUE,
			preferred_name TEXT NOT NULL DEFAULT '',
			legacy_name    TEXT NOT NULL DEFAULT '',
			grade          TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			ai_enabled     INTEGER NOT NULL DEFAULT 0,
			password_hash  TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,

			CHECK (status IN ('pending', 'active', 'rejected', 'suspended'))
		);

		CREATE TABLE IF NOT EXISTS chat_logs (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			query         TEXT NOT NULL,
			response      TEXT NOT NULL,
			tools_called  TEXT NOT NULL DEFAULT '[]',
			status        TEXT NOT NULL,
			created_at    TEXT NOT NULL,

			CHECK (status IN ('success', 'error', 'truncated'))
		);

		CREATE INDEX IF NOT EXISTS idx_chat_logs_created ON chat_logs(created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_logs_user ON chat_logs(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations adds columns introduced after the first release.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('chat_logs') WHERE name = 'error'`,
			apply:  `ALTER TABLE chat_logs ADD COLUMN error TEXT NOT NULL DEFAULT ''`,
			column: "error",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('chat_logs') WHERE name = 'steps'`,
			apply:  `ALTER TABLE chat_logs ADD COLUMN steps INTEGER NOT NULL DEFAULT 0`,
			column: "steps",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('chat_logs') WHERE name = 'input_tokens'`,
			apply:  `ALTER TABLE chat_logs ADD COLUMN input_tokens INTEGER NOT NULL DEFAULT 0`,
			column: "input_tokens",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('chat_logs') WHERE name = 'output_tokens'`,
			apply:  `ALTER TABLE chat_logs ADD COLUMN output_tokens INTEGER NOT NULL DEFAULT 0`,
			column: "output_tokens",
		},
	}

	for _, m := range migrations {
		var exists int
		if err := s.db.QueryRow(m.check).Scan(&exists); err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to chat_logs: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "chat_logs")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
