package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Infrastructure wraps
// these with %w so callers can match with errors.Is.

var (
	// Referenced entity absent
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrEpochNotFound   = errors.New("no reset epoch recorded")

	// Authentication
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session token missing or expired")
	ErrNoSession          = errors.New("no cached session token")

	// Input
	ErrValidation = errors.New("invalid input")

	// Connectivity
	ErrTransport = errors.New("request could not reach the server")

	// Reserved: appends never conflict today since every mutation is a pure
	// insert, but the API shape allows it.
	ErrConflict = errors.New("conflicting concurrent update")
)
