package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/deudat/deudat/internal/domain"
)

// ─── Client Credential Cache ────────────────────────────────────────────────
// The mobile client keeps its session token in a tiny local database, separate
// from the server store. A single fixed-id row holds the current token.

// CredCache is the on-device session token cache.
type CredCache struct {
	db *sql.DB
}

// OpenCredCache opens (or creates) the local credential database at path.
func OpenCredCache(path string) (*CredCache, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open credential cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session (id INTEGER PRIMARY KEY, session_token TEXT)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credential cache: %w", err)
	}
	return &CredCache{db: db}, nil
}

// Close releases the underlying handle.
func (c *CredCache) Close() error { return c.db.Close() }

// SessionToken returns the cached token, or ErrNoSession when none is stored.
func (c *CredCache) SessionToken() (string, error) {
	var token sql.NullString
	err := c.db.QueryRow(`SELECT session_token FROM session WHERE id = 1`).Scan(&token)
	if err == sql.ErrNoRows || (err == nil && token.String == "") {
		return "", domain.ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	return token.String, nil
}

// SetSessionToken stores the token, replacing any previous one.
func (c *CredCache) SetSessionToken(token string) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO session (id, session_token) VALUES (1, ?)`, token)
	if err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	return nil
}

// ClearSessionToken forgets the cached token.
func (c *CredCache) ClearSessionToken() error {
	_, err := c.db.Exec(`DELETE FROM session WHERE id = 1`)
	return err
}
