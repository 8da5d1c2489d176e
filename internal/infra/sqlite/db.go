// Package sqlite is the embedded authoritative store: users, products, the
// append-only transaction ledger, reset epochs, and session tokens.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle. It is opened once at process start, passed by
// reference to every component, and closed at shutdown.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and applies migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc sqlite is happiest with a single writer connection.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close releases the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			email         TEXT UNIQUE,
			password_hash TEXT,
			created_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			price      TEXT NOT NULL DEFAULT '0',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Append-only event log. Rows are never updated or deleted; a reset
		// epoch only scopes them out of aggregation.
		`CREATE TABLE IF NOT EXISTS transactions (
			id           TEXT PRIMARY KEY,
			user_id      INTEGER NOT NULL,
			product_id   INTEGER NOT NULL,
			ts_ns        INTEGER NOT NULL,
			direction    TEXT NOT NULL CHECK(direction IN ('+', '-')),
			generated_by INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user_ts ON transactions(user_id, ts_ns)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_product_ts ON transactions(product_id, ts_ns)`,

		// seq 0 is the bootstrap epoch; the primary key makes concurrent
		// bootstrap attempts collapse to a single surviving row.
		`CREATE TABLE IF NOT EXISTS reset_epochs (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			start_ns     INTEGER NOT NULL,
			generated_by INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			expires_ns INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_ns)`,
	}
}
