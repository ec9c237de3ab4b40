// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. Use ":memory:" as the path in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements
// repository.UserRepository and repository.AuthorizedClientRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every query sees the same schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// email is the natural key: one row per address, first login wins.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			name            TEXT,
			login           TEXT,
			profile_pic_url TEXT,
			company         TEXT,
			blog            TEXT,
			location        TEXT,
			bio             TEXT,
			public_repos    INTEGER NOT NULL DEFAULT 0,
			private_repos   INTEGER NOT NULL DEFAULT 0,
			public_gists    INTEGER NOT NULL DEFAULT 0,
			followers       INTEGER NOT NULL DEFAULT 0,
			following       INTEGER NOT NULL DEFAULT 0,
			site_admin      INTEGER NOT NULL DEFAULT 0,
			two_factor_auth INTEGER NOT NULL DEFAULT 0,
			account_type    TEXT,
			plan_name       TEXT,
			plan_space      INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS authorized_clients (
			provider     TEXT NOT NULL,
			subject      TEXT NOT NULL,
			access_token TEXT NOT NULL,
			token_type   TEXT NOT NULL DEFAULT '',
			scopes       TEXT NOT NULL DEFAULT '',
			expires_at   DATETIME,
			updated_at   DATETIME NOT NULL,
			PRIMARY KEY (provider, subject)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating authorized_clients table: %w", err)
	}

	return nil
}
