// Package postgres is the Postgres implementation of the authoritative store,
// for deployments where the backend is shared by several app instances.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/deudat/deudat/internal/domain"
)

// Store wraps the Postgres handle. It implements domain.Store with the same
// semantics as the sqlite store: every ledger mutation is a pure insert.
type Store struct {
	db *sql.DB
}

// Connect opens a connection pool against dsn and applies migrations.
func Connect(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	for _, stmt := range migrations() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT UNIQUE,
			password_hash TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			price      NUMERIC(12,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id           TEXT PRIMARY KEY,
			user_id      BIGINT NOT NULL,
			product_id   BIGINT NOT NULL,
			ts_ns        BIGINT NOT NULL,
			direction    TEXT NOT NULL CHECK(direction IN ('+', '-')),
			generated_by BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user_ts ON transactions(user_id, ts_ns)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_product_ts ON transactions(product_id, ts_ns)`,
		`CREATE TABLE IF NOT EXISTS reset_epochs (
			seq          BIGSERIAL PRIMARY KEY,
			start_ns     BIGINT NOT NULL,
			generated_by BIGINT
		)`,
	}
}

// ─── User Operations ────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (domain.User, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, '')) RETURNING id
	`, name, email, passwordHash).Scan(&id)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return domain.User{ID: id, Name: name, Email: email}, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &email)
	if err == sql.ErrNoRows {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Email = email.String
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	var u domain.User
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, password_hash FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &hash)
	if err == sql.ErrNoRows {
		return domain.User{}, "", domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("select user by email: %w", err)
	}
	u.Email = email
	return u, hash.String, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &email); err != nil {
			return nil, err
		}
		u.Email = email.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected(res, domain.ErrUserNotFound)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return checkAffected(res, domain.ErrUserNotFound)
}

// ─── Product Operations ─────────────────────────────────────────────────────

func (s *Store) CreateProduct(ctx context.Context, name, price string) (domain.Product, error) {
	p, err := decimal.NewFromString(price)
	if err != nil || p.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: bad price %q", domain.ErrValidation, price)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, price) VALUES ($1, $2) RETURNING id
	`, name, p.String()).Scan(&id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return domain.Product{ID: id, Name: name, Price: p}, nil
}

func (s *Store) ProductByID(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	var price string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, price::text FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &price)
	if err == sql.ErrNoRows {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	p.Price = parsePrice(price)
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price::text FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price); err != nil {
			return nil, err
		}
		p.Price = parsePrice(price)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, name, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil || p.IsNegative() {
		return fmt.Errorf("%w: bad price %q", domain.ErrValidation, price)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name = $1, price = $2 WHERE id = $3
	`, name, p.String(), id)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return checkAffected(res, domain.ErrProductNotFound)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return checkAffected(res, domain.ErrProductNotFound)
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

func (s *Store) AppendEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, product_id, ts_ns, direction, generated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.UserID, e.ProductID, e.Timestamp.UnixNano(), string(e.Direction), e.GeneratedBy)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *Store) EntriesSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, ts_ns, direction, generated_by
		FROM transactions WHERE ts_ns > $1 ORDER BY ts_ns
	`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) EntriesByUserSince(ctx context.Context, userID int64, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, ts_ns, direction, generated_by
		FROM transactions WHERE user_id = $1 AND ts_ns > $2 ORDER BY ts_ns
	`, userID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query entries by user: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ns int64
		var dir string
		var genBy sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &ns, &dir, &genBy); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ns)
		e.Direction = domain.Direction(dir)
		if genBy.Valid {
			v := genBy.Int64
			e.GeneratedBy = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Reset Epoch Operations ─────────────────────────────────────────────────

func (s *Store) LatestEpoch(ctx context.Context) (domain.ResetEpoch, error) {
	var e domain.ResetEpoch
	var ns int64
	var genBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, start_ns, generated_by FROM reset_epochs ORDER BY seq DESC LIMIT 1
	`).Scan(&e.Seq, &ns, &genBy)
	if err == sql.ErrNoRows {
		return domain.ResetEpoch{}, domain.ErrEpochNotFound
	}
	if err != nil {
		return domain.ResetEpoch{}, fmt.Errorf("select epoch: %w", err)
	}
	e.Start = time.Unix(0, ns)
	if genBy.Valid {
		v := genBy.Int64
		e.GeneratedBy = &v
	}
	return e, nil
}

func (s *Store) InsertEpoch(ctx context.Context, start time.Time, generatedBy *int64) (domain.ResetEpoch, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reset_epochs (start_ns, generated_by) VALUES ($1, $2) RETURNING seq
	`, start.UnixNano(), generatedBy).Scan(&seq)
	if err != nil {
		return domain.ResetEpoch{}, fmt.Errorf("insert epoch: %w", err)
	}
	return domain.ResetEpoch{Seq: seq, Start: start, GeneratedBy: generatedBy}, nil
}

// BootstrapEpoch inserts epoch 0 exactly once; the explicit seq collides on
// the primary key for every racer but the first.
func (s *Store) BootstrapEpoch(ctx context.Context, start time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reset_epochs (seq, start_ns) VALUES (0, $1) ON CONFLICT (seq) DO NOTHING
	`, start.UnixNano())
	if err != nil {
		return fmt.Errorf("bootstrap epoch: %w", err)
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func parsePrice(s string) decimal.Decimal {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return p
}
