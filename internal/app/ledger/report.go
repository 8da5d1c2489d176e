package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deudat/deudat/internal/domain"
	"github.com/deudat/deudat/internal/infra/observability"
)

// ─── Balance Aggregator ─────────────────────────────────────────────────────

// Aggregate computes per-user balances over the current epoch window using
// the product prices in effect right now (PricePolicyCurrent). Users whose
// net count is zero across every product are excluded.
func (s *Service) Aggregate(ctx context.Context) ([]domain.AggregatedDebt, error) {
	start := time.Now()
	defer func() {
		observability.AggregationSeconds.Observe(time.Since(start).Seconds())
	}()

	windowStart, err := s.epochWindow(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.EntriesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}
	priceOf := func(id int64) (decimal.Decimal, bool) {
		price, ok := prices[id]
		return price, ok
	}

	return domain.Debts(entries, priceOf), nil
}

// ─── Debt View Assembler ────────────────────────────────────────────────────

// Report assembles the debts screen payload: one row per user with activity,
// sorted by display name, plus the grand total and days since the last reset.
// Rows whose user no longer resolves to a display name are dropped.
func (s *Service) Report(ctx context.Context) (domain.DebtReport, error) {
	observability.DebtReports.Inc()

	debts, err := s.Aggregate(ctx)
	if err != nil {
		return domain.DebtReport{}, err
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return domain.DebtReport{}, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	rows := make([]domain.DebtRow, 0, len(debts))
	total := decimal.Zero
	for _, d := range debts {
		name, ok := names[d.UserID]
		if !ok {
			continue
		}
		rows = append(rows, domain.DebtRow{
			UserID:   d.UserID,
			UserName: name,
			Amount:   d.Amount,
			Display:  domain.FormatAmount(d.Amount),
		})
		total = total.Add(d.Amount)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].UserName < rows[j].UserName })

	days, err := s.DaysSinceReset(ctx)
	if err != nil {
		return domain.DebtReport{}, err
	}

	return domain.DebtReport{
		Rows:           rows,
		Total:          total,
		TotalDisplay:   domain.FormatAmount(total),
		DaysSinceReset: days,
	}, nil
}
