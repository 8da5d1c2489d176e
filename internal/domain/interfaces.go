package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// Store is the authoritative persistence boundary: users, products, the
// append-only transaction ledger, and reset epochs. All mutation is a pure
// insert or a whole-row update keyed by id — there is no read-modify-write on
// a shared counter, which is what keeps concurrent multi-client writers safe.
type Store interface {
	// Users
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, string, error) // returns stored password hash
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, name string) error
	DeleteUser(ctx context.Context, id int64) error

	// Products
	CreateProduct(ctx context.Context, name string, price string) (Product, error)
	ProductByID(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, id int64, name string, price string) error
	DeleteProduct(ctx context.Context, id int64) error

	// Ledger — append-only
	AppendEntry(ctx context.Context, e LedgerEntry) error
	EntriesSince(ctx context.Context, since time.Time) ([]LedgerEntry, error)
	EntriesByUserSince(ctx context.Context, userID int64, since time.Time) ([]LedgerEntry, error)

	// Reset epochs
	LatestEpoch(ctx context.Context) (ResetEpoch, error) // ErrEpochNotFound when none exists
	InsertEpoch(ctx context.Context, start time.Time, generatedBy *int64) (ResetEpoch, error)
	// BootstrapEpoch inserts epoch 0 if and only if no epoch exists yet.
	// Must be idempotent under concurrent callers: exactly one epoch 0 survives.
	BootstrapEpoch(ctx context.Context, start time.Time) error

	Close() error
}

// SessionStore issues and resolves session tokens for authenticated users.
type SessionStore interface {
	Create(ctx context.Context, userID int64) (string, error)
	Resolve(ctx context.Context, token string) (int64, error) // ErrSessionExpired when unknown
	Delete(ctx context.Context, token string) error
}

// CredentialStore is the client-side opaque token cache (a local sqlite file
// on the device in the mobile app).
type CredentialStore interface {
	SessionToken() (string, error) // ErrNoSession when empty
	SetSessionToken(token string) error
	ClearSessionToken() error
}
