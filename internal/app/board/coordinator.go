// Package board implements the client-side state behind the main board
// screen: per-product counts for one user, updated optimistically and
// reconciled against the backend.
package board

import (
	"context"
	"log"
	"sync"

	"github.com/deudat/deudat/internal/domain"
)

// Transport is the slice of the backend API the board needs.
type Transport interface {
	AppendTransaction(ctx context.Context, userID, productID int64, dir domain.Direction) error
	QuantitiesByUser(ctx context.Context, userID int64) (map[int64]int, error)
}

// ErrorFunc is called when a fire-and-forget append fails after the local
// count was already rolled back. The UI uses it to surface a toast.
type ErrorFunc func(productID int64, dir domain.Direction, err error)

// Coordinator keeps the board counts for a single user. Taps mutate the
// local count synchronously and push the ledger entry in the background, so
// the UI never blocks on the network. A failed push rolls the local count
// back. Snapshot refreshes are generation-tagged: a response fetched before
// the latest local change is stale and gets discarded instead of clobbering
// counts the user just changed.
type Coordinator struct {
	transport Transport
	userID    int64
	onError   ErrorFunc

	mu     sync.Mutex
	counts map[int64]int
	gen    uint64 // bumped on every local change

	inflight sync.WaitGroup
}

// NewCoordinator creates a board for the given user. onError may be nil.
func NewCoordinator(t Transport, userID int64, onError ErrorFunc) *Coordinator {
	if onError == nil {
		onError = func(productID int64, dir domain.Direction, err error) {
			log.Printf("[board] append %s product=%d failed: %v", dir, productID, err)
		}
	}
	return &Coordinator{
		transport: t,
		userID:    userID,
		onError:   onError,
		counts:    make(map[int64]int),
	}
}

// Count returns the current local count for a product and whether it is
// known at all.
func (c *Coordinator) Count(productID int64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[productID]
	return n, ok
}

// Counts returns a copy of all local counts.
func (c *Coordinator) Counts() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Increment bumps the local count and pushes a "+" entry in the background.
func (c *Coordinator) Increment(ctx context.Context, productID int64) {
	c.mu.Lock()
	c.counts[productID]++
	c.gen++
	c.mu.Unlock()

	c.send(ctx, productID, domain.Increment)
}

// Decrement guards against going below zero: when the local count is zero or
// the product is unknown it is a silent no-op and nothing is sent. Otherwise
// it drops the local count and pushes a "-" entry in the background. The
// return value reports whether the tap was applied.
func (c *Coordinator) Decrement(ctx context.Context, productID int64) bool {
	c.mu.Lock()
	n, ok := c.counts[productID]
	if !ok || n <= 0 {
		c.mu.Unlock()
		return false
	}
	c.counts[productID]--
	c.gen++
	c.mu.Unlock()

	c.send(ctx, productID, domain.Decrement)
	return true
}

func (c *Coordinator) send(ctx context.Context, productID int64, dir domain.Direction) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.transport.AppendTransaction(ctx, c.userID, productID, dir); err != nil {
			c.rollback(productID, dir)
			c.onError(productID, dir, err)
		}
	}()
}

// rollback undoes the optimistic local change for a failed append. It counts
// as a local change itself, so any refresh already in flight is superseded.
func (c *Coordinator) rollback(productID int64, dir domain.Direction) {
	c.mu.Lock()
	c.counts[productID] -= dir.Sign()
	c.gen++
	c.mu.Unlock()
}

// Wait blocks until every background append has settled. The UI calls this
// before tearing the board down.
func (c *Coordinator) Wait() { c.inflight.Wait() }

// Refresh fetches the authoritative counts and applies them unless a local
// change happened while the fetch was in flight.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	startGen := c.gen
	c.mu.Unlock()

	snapshot, err := c.transport.QuantitiesByUser(ctx, c.userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != startGen {
		// Stale: the user tapped while we were fetching.
		return nil
	}
	counts := make(map[int64]int, len(snapshot))
	for k, v := range snapshot {
		counts[k] = v
	}
	c.counts = counts
	return nil
}
