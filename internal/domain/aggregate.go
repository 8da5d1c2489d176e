package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ─── Balance Aggregation ────────────────────────────────────────────────────
// Aggregation is a commutative signed sum over immutable ledger entries, so it
// is order-independent by construction: any permutation of the same entries
// yields the same result.

// NetQuantities folds ledger entries into net counts per (user, product):
// increments minus decrements. The caller is responsible for epoch scoping.
func NetQuantities(entries []LedgerEntry) map[QuantityKey]int {
	nets := make(map[QuantityKey]int)
	for _, e := range entries {
		nets[QuantityKey{UserID: e.UserID, ProductID: e.ProductID}] += e.Direction.Sign()
	}
	return nets
}

// NetQuantitiesByProduct folds a single user's entries into productID → net.
func NetQuantitiesByProduct(entries []LedgerEntry) map[int64]int {
	nets := make(map[int64]int)
	for _, e := range entries {
		nets[e.ProductID] += e.Direction.Sign()
	}
	return nets
}

// Debts converts net quantities into per-user monetary balances using priceOf
// for the price in effect at aggregation time. Users whose net count is zero
// for every product are excluded — only users with activity appear on the
// debts screen. A product that cannot be priced contributes zero instead of
// failing: this is a display aggregate, not a ledger of record.
//
// Amounts are exact decimals; no rounding happens here.
func Debts(entries []LedgerEntry, priceOf func(productID int64) (decimal.Decimal, bool)) []AggregatedDebt {
	nets := NetQuantities(entries)

	totals := make(map[int64]decimal.Decimal)
	active := make(map[int64]bool)
	for key, net := range nets {
		if net != 0 {
			active[key.UserID] = true
		}
		price, ok := priceOf(key.ProductID)
		if !ok {
			continue
		}
		contribution := price.Mul(decimal.NewFromInt(int64(net)))
		totals[key.UserID] = totals[key.UserID].Add(contribution)
	}

	debts := make([]AggregatedDebt, 0, len(active))
	for userID := range active {
		debts = append(debts, AggregatedDebt{UserID: userID, Amount: totals[userID]})
	}
	sort.Slice(debts, func(i, j int) bool { return debts[i].UserID < debts[j].UserID })
	return debts
}

// GrandTotal sums per-user balances without rounding.
func GrandTotal(debts []AggregatedDebt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.Amount)
	}
	return total
}
