package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Direction Tests ────────────────────────────────────────────────────────

func TestDirection_Valid(t *testing.T) {
	tests := []struct {
		d    Direction
		want bool
	}{
		{Increment, true},
		{Decrement, true},
		{Direction("x"), false},
		{Direction(""), false},
	}
	for _, tt := range tests {
		if got := tt.d.Valid(); got != tt.want {
			t.Errorf("Direction(%q).Valid() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestDirection_Sign(t *testing.T) {
	if Increment.Sign() != 1 {
		t.Errorf("Increment.Sign() = %d, want 1", Increment.Sign())
	}
	if Decrement.Sign() != -1 {
		t.Errorf("Decrement.Sign() = %d, want -1", Decrement.Sign())
	}
}

// ─── Epoch Tests ────────────────────────────────────────────────────────────

func TestResetEpoch_DaysSince(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	epoch := ResetEpoch{Seq: 1, Start: start}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"exact boundary", start, 0},
		{"under a day", start.Add(23 * time.Hour), 0},
		{"one day", start.Add(24 * time.Hour), 1},
		{"one week and change", start.Add(7*24*time.Hour + 3*time.Hour), 7},
		{"clock skew before start", start.Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := epoch.DaysSince(tt.now); got != tt.want {
				t.Errorf("DaysSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ─── Aggregation Tests ──────────────────────────────────────────────────────

func entry(user, product int64, d Direction, at time.Time) LedgerEntry {
	return LedgerEntry{UserID: user, ProductID: product, Direction: d, Timestamp: at}
}

func TestNetQuantities_SignedSum(t *testing.T) {
	now := time.Now()
	entries := []LedgerEntry{
		entry(1, 10, Increment, now),
		entry(1, 10, Increment, now),
		entry(1, 10, Decrement, now),
		entry(2, 10, Increment, now),
		entry(2, 20, Decrement, now),
	}

	nets := NetQuantities(entries)
	if nets[QuantityKey{1, 10}] != 1 {
		t.Errorf("net(1,10) = %d, want 1", nets[QuantityKey{1, 10}])
	}
	if nets[QuantityKey{2, 10}] != 1 {
		t.Errorf("net(2,10) = %d, want 1", nets[QuantityKey{2, 10}])
	}
	if nets[QuantityKey{2, 20}] != -1 {
		t.Errorf("net(2,20) = %d, want -1", nets[QuantityKey{2, 20}])
	}
}

// Aggregation must be order-independent: entries arrive from concurrent
// clients with no receipt-order guarantee.
func TestNetQuantities_OrderIndependent(t *testing.T) {
	now := time.Now()
	entries := []LedgerEntry{
		entry(1, 10, Increment, now),
		entry(2, 10, Increment, now),
		entry(1, 10, Decrement, now),
		entry(1, 20, Increment, now),
		entry(2, 10, Decrement, now),
		entry(1, 10, Increment, now),
	}

	want := NetQuantities(entries)

	// Rotate through every cyclic permutation.
	for i := 1; i < len(entries); i++ {
		perm := append(append([]LedgerEntry{}, entries[i:]...), entries[:i]...)
		got := NetQuantities(perm)
		if len(got) != len(want) {
			t.Fatalf("permutation %d: %d keys, want %d", i, len(got), len(want))
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("permutation %d: net%v = %d, want %d", i, k, got[k], v)
			}
		}
	}
}

func priceTable(prices map[int64]string) func(int64) (decimal.Decimal, bool) {
	return func(id int64) (decimal.Decimal, bool) {
		s, ok := prices[id]
		if !ok {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
}

// End-to-end scenario: Alice nets 2 coffees, Bob nets 0. Bob is excluded and
// the total is Alice's balance alone.
func TestDebts_ExcludesZeroNetUsers(t *testing.T) {
	now := time.Now()
	const alice, bob int64 = 1, 2
	const coffee int64 = 10

	entries := []LedgerEntry{
		entry(alice, coffee, Increment, now),
		entry(alice, coffee, Increment, now),
		entry(bob, coffee, Increment, now),
		entry(bob, coffee, Decrement, now),
	}

	debts := Debts(entries, priceTable(map[int64]string{coffee: "1.50"}))
	if len(debts) != 1 {
		t.Fatalf("rows = %d, want 1 (Bob nets zero)", len(debts))
	}
	if debts[0].UserID != alice {
		t.Errorf("row user = %d, want %d", debts[0].UserID, alice)
	}
	if got := debts[0].Amount.String(); got != "3" {
		t.Errorf("Alice owes %s, want 3", got)
	}
	if got := GrandTotal(debts).StringFixed(2); got != "3.00" {
		t.Errorf("total = %s, want 3.00", got)
	}
}

func TestDebts_UnpricedProductContributesZero(t *testing.T) {
	now := time.Now()
	entries := []LedgerEntry{
		entry(1, 10, Increment, now),
		entry(1, 99, Increment, now), // product 99 has no price
	}

	debts := Debts(entries, priceTable(map[int64]string{10: "2.00"}))
	if len(debts) != 1 {
		t.Fatalf("rows = %d, want 1", len(debts))
	}
	if got := debts[0].Amount.StringFixed(2); got != "2.00" {
		t.Errorf("amount = %s, want 2.00 (unpriced product ignored)", got)
	}
}

func TestDebts_EmptyLedger(t *testing.T) {
	debts := Debts(nil, priceTable(nil))
	if len(debts) != 0 {
		t.Fatalf("rows = %d, want 0", len(debts))
	}
	if !GrandTotal(debts).IsZero() {
		t.Errorf("total = %s, want 0", GrandTotal(debts))
	}
}

// Contributions are summed exactly; only the final display value is rounded.
// With price 1.005 and nets {3, -1} across three products, rounding per row
// before summation would drift.
func TestDebts_NoDoubleRounding(t *testing.T) {
	now := time.Now()
	entries := []LedgerEntry{
		entry(1, 10, Increment, now),
		entry(1, 10, Increment, now),
		entry(1, 10, Increment, now),
		entry(1, 20, Decrement, now),
		entry(1, 30, Increment, now),
	}
	prices := priceTable(map[int64]string{10: "1.005", 20: "1.005", 30: "1.005"})

	debts := Debts(entries, prices)
	if len(debts) != 1 {
		t.Fatalf("rows = %d, want 1", len(debts))
	}
	// 3*1.005 - 1.005 + 1.005 = 3.015 exactly
	if got := debts[0].Amount.String(); got != "3.015" {
		t.Errorf("unrounded amount = %s, want 3.015", got)
	}
	if got := FormatAmount(debts[0].Amount); got != "3.02" {
		t.Errorf("display amount = %s, want 3.02", got)
	}
}

func TestDebts_StableUserOrder(t *testing.T) {
	now := time.Now()
	entries := []LedgerEntry{
		entry(3, 10, Increment, now),
		entry(1, 10, Increment, now),
		entry(2, 10, Increment, now),
	}
	debts := Debts(entries, priceTable(map[int64]string{10: "1.00"}))
	for i := 1; i < len(debts); i++ {
		if debts[i-1].UserID >= debts[i].UserID {
			t.Fatalf("debts not sorted by user id: %v", debts)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3", "3.00"},
		{"3.015", "3.02"},
		{"0", "0.00"},
		{"-1.5", "-1.50"},
	}
	for _, tt := range tests {
		d, _ := decimal.NewFromString(tt.in)
		if got := FormatAmount(d); got != tt.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
