// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the application — it depends on nothing but
// the decimal type used for money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Core Entities ──────────────────────────────────────────────────────────

// User is a household member that can check out products.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Product is a purchasable item on the board.
// Price is mutable; ledger entries are never repriced retroactively — the
// aggregator reads the price in effect at aggregation time (see PricePolicy).
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Direction is the sign of a ledger entry, using the wire values the mobile
// client sends ("+" checkout, "-" return).
type Direction string

const (
	Increment Direction = "+"
	Decrement Direction = "-"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool { return d == Increment || d == Decrement }

// Sign returns +1 for Increment and -1 for Decrement.
func (d Direction) Sign() int {
	if d == Decrement {
		return -1
	}
	return 1
}

// LedgerEntry is one immutable consumption/return event. Entries are never
// updated or deleted; a reset epoch only excludes older entries from
// aggregation.
type LedgerEntry struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user"`
	ProductID   int64     `json:"product"`
	Timestamp   time.Time `json:"date"`
	Direction   Direction `json:"type"`
	GeneratedBy *int64    `json:"generated_by"` // who acted on the user's behalf, nil for self
}

// ─── Reset Epochs ───────────────────────────────────────────────────────────

// ResetEpoch marks the start of a debt accounting window. The current epoch is
// always the one with the highest sequence number; aggregation only counts
// entries with Timestamp after Start.
type ResetEpoch struct {
	Seq         int64     `json:"seq"`
	Start       time.Time `json:"start"`
	GeneratedBy *int64    `json:"generated_by"`
}

// DaysSince returns the whole days elapsed from the epoch start to now,
// never negative.
func (e ResetEpoch) DaysSince(now time.Time) int {
	d := now.Sub(e.Start)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// ─── Derived Aggregates ─────────────────────────────────────────────────────

// QuantityKey identifies a (user, product) pair in aggregation results.
type QuantityKey struct {
	UserID    int64
	ProductID int64
}

// AggregatedDebt is one user's monetary balance for the current epoch.
type AggregatedDebt struct {
	UserID int64
	Amount decimal.Decimal
}

// DebtRow is a display row of the debts report.
type DebtRow struct {
	UserID   int64           `json:"id"`
	UserName string          `json:"user"`
	Amount   decimal.Decimal `json:"-"`
	Display  string          `json:"amount"` // Amount rounded to 2 decimals, render-time only
}

// DebtReport is the assembled debts screen payload.
type DebtReport struct {
	Rows           []DebtRow       `json:"rows"`
	Total          decimal.Decimal `json:"-"`
	TotalDisplay   string          `json:"total"`
	DaysSinceReset int             `json:"days_since_reset"`
}

// FormatAmount renders a monetary amount for display with fixed two decimals.
// Amounts are kept unrounded until this point so summation never compounds
// rounding error.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
