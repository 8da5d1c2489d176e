package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deudat/deudat/internal/domain"
)

// ─── User Operations ────────────────────────────────────────────────────────

// CreateUser inserts a user and returns it with its assigned id.
func (d *DB) CreateUser(ctx context.Context, name, email, passwordHash string) (domain.User, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash) VALUES (?, NULLIF(?, ''), NULLIF(?, ''))
	`, name, email, passwordHash)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Name: name, Email: email}, nil
}

// UserByID retrieves a user.
func (d *DB) UserByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	var email sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, email FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &email)
	if err == sql.ErrNoRows {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Email = email.String
	return u, nil
}

// UserByEmail retrieves a user and its password hash for login.
func (d *DB) UserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	var u domain.User
	var hash sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, password_hash FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Name, &hash)
	if err == sql.ErrNoRows {
		return domain.User{}, "", domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("select user by email: %w", err)
	}
	u.Email = email
	return u, hash.String, nil
}

// ListUsers returns all users ordered by id.
func (d *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY id`)
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

// UpdateUser renames a user.
func (d *DB) UpdateUser(ctx context.Context, id int64, name string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected(res, domain.ErrUserNotFound)
}

// DeleteUser removes a user. Ledger rows referencing it stay in place; the
// debts report drops rows whose user no longer resolves.
func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return checkAffected(res, domain.ErrUserNotFound)
}

// ─── Product Operations ─────────────────────────────────────────────────────

// CreateProduct inserts a product. Price is a decimal string.
func (d *DB) CreateProduct(ctx context.Context, name, price string) (domain.Product, error) {
	p, err := decimal.NewFromString(price)
	if err != nil || p.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: bad price %q", domain.ErrValidation, price)
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO products (name, price) VALUES (?, ?)`, name, p.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{ID: id, Name: name, Price: p}, nil
}

// ProductByID retrieves a product.
func (d *DB) ProductByID(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	var price string
	err := d.db.QueryRowContext(ctx, `SELECT id, name, price FROM products WHERE id = ?`, id).
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

// ListProducts returns all products ordered by id.
func (d *DB) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, price FROM products ORDER BY id`)
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

// UpdateProduct renames and reprices a product. Existing ledger entries are
// not repriced; the aggregator reads the price current at aggregation time.
func (d *DB) UpdateProduct(ctx context.Context, id int64, name, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil || p.IsNegative() {
		return fmt.Errorf("%w: bad price %q", domain.ErrValidation, price)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE products SET name = ?, price = ? WHERE id = ?`, name, p.String(), id)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return checkAffected(res, domain.ErrProductNotFound)
}

// DeleteProduct removes a product.
func (d *DB) DeleteProduct(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return checkAffected(res, domain.ErrProductNotFound)
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// AppendEntry durably inserts one immutable ledger entry.
func (d *DB) AppendEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, product_id, ts_ns, direction, generated_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.ProductID, e.Timestamp.UnixNano(), string(e.Direction), e.GeneratedBy)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// EntriesSince returns all entries strictly after since, any user.
func (d *DB) EntriesSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, ts_ns, direction, generated_by
		FROM transactions WHERE ts_ns > ? ORDER BY ts_ns
	`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return scanEntries(rows)
}

// EntriesByUserSince returns one user's entries strictly after since.
func (d *DB) EntriesByUserSince(ctx context.Context, userID int64, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, ts_ns, direction, generated_by
		FROM transactions WHERE user_id = ? AND ts_ns > ? ORDER BY ts_ns
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

// LatestEpoch returns the epoch with the highest sequence number.
func (d *DB) LatestEpoch(ctx context.Context) (domain.ResetEpoch, error) {
	var e domain.ResetEpoch
	var ns int64
	var genBy sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
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

// InsertEpoch creates a new epoch with the given start time.
func (d *DB) InsertEpoch(ctx context.Context, start time.Time, generatedBy *int64) (domain.ResetEpoch, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO reset_epochs (start_ns, generated_by) VALUES (?, ?)
	`, start.UnixNano(), generatedBy)
	if err != nil {
		return domain.ResetEpoch{}, fmt.Errorf("insert epoch: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.ResetEpoch{}, err
	}
	return domain.ResetEpoch{Seq: seq, Start: start, GeneratedBy: generatedBy}, nil
}

// BootstrapEpoch inserts epoch 0 if no epoch exists. The explicit seq plus
// primary key make the insert idempotent: when concurrent bootstrap attempts
// race, only one epoch 0 survives.
func (d *DB) BootstrapEpoch(ctx context.Context, start time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reset_epochs (seq, start_ns) VALUES (0, ?)
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

// parsePrice tolerates a malformed stored price by treating it as zero: the
// debts report is a display aggregate, not a ledger of record.
func parsePrice(s string) decimal.Decimal {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return p
}
