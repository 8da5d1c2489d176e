// Package ledger implements the debt accounting core: the append-only
// quantity ledger, the reset epoch tracker, the balance aggregator, and the
// debts report assembler.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/deudat/deudat/internal/domain"
	"github.com/deudat/deudat/internal/infra/observability"
)

// Service is the server-side accounting service. It owns no state of its own;
// everything durable lives behind the Store.
type Service struct {
	store domain.Store
	now   func() time.Time
}

// NewService creates the accounting service on top of a store.
func NewService(store domain.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ─── Quantity Ledger ────────────────────────────────────────────────────────

// Append validates the referenced entities and durably appends one immutable
// ledger entry. There is deliberately no below-zero check here: the ledger is
// an event log, not a counter, and the display guard lives client-side.
func (s *Service) Append(ctx context.Context, userID, productID int64, dir domain.Direction, generatedBy *int64) (string, error) {
	if !dir.Valid() {
		observability.AppendRejected.Inc()
		return "", fmt.Errorf("%w: unknown direction %q", domain.ErrValidation, dir)
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		observability.AppendRejected.Inc()
		return "", err
	}
	if _, err := s.store.ProductByID(ctx, productID); err != nil {
		observability.AppendRejected.Inc()
		return "", err
	}

	e := domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProductID:   productID,
		Timestamp:   s.now(),
		Direction:   dir,
		GeneratedBy: generatedBy,
	}
	if err := s.store.AppendEntry(ctx, e); err != nil {
		return "", err
	}
	observability.LedgerAppends.WithLabelValues(string(dir)).Inc()
	return e.ID, nil
}

// QuantitiesByUser returns the user's net count per product within the
// current epoch window — the numbers shown next to the +/− controls.
func (s *Service) QuantitiesByUser(ctx context.Context, userID int64) (map[int64]int, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	start, err := s.epochWindow(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.EntriesByUserSince(ctx, userID, start)
	if err != nil {
		return nil, err
	}
	return domain.NetQuantitiesByProduct(entries), nil
}

// ─── Reset Epoch Tracker ────────────────────────────────────────────────────

// CurrentEpoch returns the newest epoch, bootstrapping epoch 0 on first read.
// Bootstrap is idempotent under concurrent callers; the race resolves inside
// the store and is never surfaced.
func (s *Service) CurrentEpoch(ctx context.Context) (domain.ResetEpoch, error) {
	e, err := s.store.LatestEpoch(ctx)
	if errors.Is(err, domain.ErrEpochNotFound) {
		if err := s.store.BootstrapEpoch(ctx, s.now()); err != nil {
			return domain.ResetEpoch{}, err
		}
		return s.store.LatestEpoch(ctx)
	}
	return e, err
}

// Reset starts a new accounting epoch. All existing ledger entries drop out
// of aggregation; none are deleted.
func (s *Service) Reset(ctx context.Context, generatedBy *int64) (domain.ResetEpoch, error) {
	e, err := s.store.InsertEpoch(ctx, s.now(), generatedBy)
	if err != nil {
		return domain.ResetEpoch{}, err
	}
	observability.Resets.Inc()
	log.Printf("[ledger] reset: new epoch seq=%d", e.Seq)
	return e, nil
}

// DaysSinceReset returns whole days since the current epoch started, 0 at the
// boundary.
func (s *Service) DaysSinceReset(ctx context.Context) (int, error) {
	e, err := s.CurrentEpoch(ctx)
	if err != nil {
		return 0, err
	}
	return e.DaysSince(s.now()), nil
}

// epochWindow returns the aggregation window start. When no epoch exists yet
// the whole ledger is in scope, so the window opens at the zero time. Reads
// here must not bootstrap: bootstrapping stamps "now" as the epoch start and
// would wrongly scope out everything already in the ledger.
func (s *Service) epochWindow(ctx context.Context) (time.Time, error) {
	e, err := s.store.LatestEpoch(ctx)
	if errors.Is(err, domain.ErrEpochNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return e.Start, nil
}
