package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deudat/deudat/internal/domain"
)

// ─── Session Store ──────────────────────────────────────────────────────────

// Sessions issues and resolves session tokens backed by the same database
// file as the rest of the store. For multi-instance deployments the redis
// backend is the better fit; this one needs no extra process.
type Sessions struct {
	db  *DB
	ttl time.Duration
}

// NewSessions creates a sqlite-backed session store with the given token TTL.
func NewSessions(db *DB, ttl time.Duration) *Sessions {
	return &Sessions{db: db, ttl: ttl}
}

// Create issues a fresh token for the user.
func (s *Sessions) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	expires := time.Now().Add(s.ttl).UnixNano()
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_ns) VALUES (?, ?, ?)
	`, token, userID, expires)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// Resolve returns the user id for a live token.
func (s *Sessions) Resolve(ctx context.Context, token string) (int64, error) {
	var userID, expires int64
	err := s.db.db.QueryRowContext(ctx, `
		SELECT user_id, expires_ns FROM sessions WHERE token = ?
	`, token).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return 0, domain.ErrSessionExpired
	}
	if err != nil {
		return 0, fmt.Errorf("select session: %w", err)
	}
	if time.Now().UnixNano() > expires {
		// Expired rows are cleaned lazily on lookup.
		s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return 0, domain.ErrSessionExpired
	}
	return userID, nil
}

// Delete revokes a token.
func (s *Sessions) Delete(ctx context.Context, token string) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}
