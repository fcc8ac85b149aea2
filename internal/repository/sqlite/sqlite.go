// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite — no CGo, no
// external server, a single file (or ":memory:" in tests). WAL mode lets
// reads proceed while a write is in flight; writes themselves serialize,
// which is exactly the conflict-detection the refresh ledger and profile
// upserts rely on: a conditional UPDATE/DELETE observes either the row or
// its absence, never a torn state.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces for users, profiles, and refresh tokens.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite permits one writer at a time; a pool of connections only
	// manufactures SQLITE_BUSY errors. A single connection also makes
	// ":memory:" behave as one database instead of one per connection.
	conn.SetMaxOpenConns(1)

	// Surface a bad path or permissions problem now instead of on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	// discord_id is UNIQUE — each Discord account maps to exactly one row.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			discord_id TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// mods is the manifest's mod list stored as JSON — it is replaced
	// wholesale on every update, never patched, so a structured column
	// buys nothing.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id          TEXT PRIMARY KEY,
			short_id    TEXT NOT NULL UNIQUE,
			owner_id    TEXT NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL,
			community   TEXT NOT NULL DEFAULT '',
			mods        TEXT NOT NULL DEFAULT '[]',
			archive_key TEXT NOT NULL,
			downloads   INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_owner_id ON profiles(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	// Refresh values are stored hashed; redemption deletes the row, so
	// the table only ever holds currently-valid credentials.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token_hash TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			issued_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating refresh_tokens table: %w", err)
	}

	return nil
}
