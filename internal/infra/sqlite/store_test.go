package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deudat/deudat/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "deudat.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Migration Test ─────────────────────────────────────────────────────────

func TestMigrations_TablesExist(t *testing.T) {
	db := newTestDB(t)

	tables := []string{"users", "products", "transactions", "reset_epochs", "sessions"}
	for _, table := range tables {
		var count int
		err := db.db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found in database", table)
		}
	}
}

// ─── User CRUD Tests ────────────────────────────────────────────────────────

func TestUserCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := db.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if got.Name != "Alice" || got.Email != "alice@example.com" {
		t.Errorf("got %+v, want Alice/alice@example.com", got)
	}

	byEmail, hash, err := db.UserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("UserByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID || hash != "hash" {
		t.Errorf("UserByEmail = %+v hash=%q", byEmail, hash)
	}

	if err := db.UpdateUser(ctx, u.ID, "Alicia"); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	got, _ = db.UserByID(ctx, u.ID)
	if got.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", got.Name)
	}

	if err := db.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := db.UserByID(ctx, u.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("after delete err = %v, want ErrUserNotFound", err)
	}
}

func TestUserNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UserByID(ctx, 42); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UserByID err = %v, want ErrUserNotFound", err)
	}
	if err := db.UpdateUser(ctx, 42, "x"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UpdateUser err = %v, want ErrUserNotFound", err)
	}
	if err := db.DeleteUser(ctx, 42); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("DeleteUser err = %v, want ErrUserNotFound", err)
	}
}

// ─── Product Tests ──────────────────────────────────────────────────────────

func TestProductCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := db.CreateProduct(ctx, "Coffee", "1.50")
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p.Price.StringFixed(2) != "1.50" {
		t.Errorf("price = %s, want 1.50", p.Price)
	}

	if err := db.UpdateProduct(ctx, p.ID, "Coffee", "1.75"); err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	got, err := db.ProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProductByID failed: %v", err)
	}
	if got.Price.StringFixed(2) != "1.75" {
		t.Errorf("price after update = %s, want 1.75", got.Price)
	}

	if err := db.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if _, err := db.ProductByID(ctx, p.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("after delete err = %v, want ErrProductNotFound", err)
	}
}

func TestCreateProduct_RejectsBadPrice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, price := range []string{"abc", "-1.50", ""} {
		if _, err := db.CreateProduct(ctx, "x", price); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("CreateProduct(%q) err = %v, want ErrValidation", price, err)
		}
	}
}

// ─── Ledger Tests ───────────────────────────────────────────────────────────

func appendAt(t *testing.T, db *DB, user, product int64, dir domain.Direction, at time.Time) {
	t.Helper()
	err := db.AppendEntry(context.Background(), domain.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    user,
		ProductID: product,
		Timestamp: at,
		Direction: dir,
	})
	if err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
}

func TestEntriesSince_StrictlyAfter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now()

	appendAt(t, db, 1, 10, domain.Increment, base.Add(1*time.Second))
	appendAt(t, db, 1, 10, domain.Increment, base.Add(2*time.Second))
	appendAt(t, db, 1, 10, domain.Increment, base.Add(3*time.Second))

	// Window boundary between t=2 and t=3
	entries, err := db.EntriesSince(ctx, base.Add(2500*time.Millisecond))
	if err != nil {
		t.Fatalf("EntriesSince failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (only t=3)", len(entries))
	}

	// Boundary exactly on an entry: strictly-after excludes it
	entries, _ = db.EntriesSince(ctx, base.Add(2*time.Second))
	if len(entries) != 1 {
		t.Errorf("entries at exact boundary = %d, want 1", len(entries))
	}
}

func TestEntriesByUserSince_FiltersUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	appendAt(t, db, 1, 10, domain.Increment, now)
	appendAt(t, db, 2, 10, domain.Increment, now.Add(time.Millisecond))

	entries, err := db.EntriesByUserSince(ctx, 1, time.Time{})
	if err != nil {
		t.Fatalf("EntriesByUserSince failed: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != 1 {
		t.Errorf("entries = %+v, want only user 1", entries)
	}
}

func TestAppendEntry_KeepsAttribution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	actor := int64(7)

	err := db.AppendEntry(ctx, domain.LedgerEntry{
		ID: uuid.NewString(), UserID: 1, ProductID: 10,
		Timestamp: time.Now(), Direction: domain.Decrement, GeneratedBy: &actor,
	})
	if err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	entries, _ := db.EntriesSince(ctx, time.Time{})
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].GeneratedBy == nil || *entries[0].GeneratedBy != actor {
		t.Errorf("generated_by = %v, want %d", entries[0].GeneratedBy, actor)
	}
	if entries[0].Direction != domain.Decrement {
		t.Errorf("direction = %q, want %q", entries[0].Direction, domain.Decrement)
	}
}

// ─── Epoch Tests ────────────────────────────────────────────────────────────

func TestLatestEpoch_EmptyStore(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.LatestEpoch(context.Background()); !errors.Is(err, domain.ErrEpochNotFound) {
		t.Errorf("err = %v, want ErrEpochNotFound", err)
	}
}

func TestBootstrapEpoch_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Now()
	if err := db.BootstrapEpoch(ctx, start); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	// Second bootstrap with a different start must not replace epoch 0.
	if err := db.BootstrapEpoch(ctx, start.Add(time.Hour)); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	e, err := db.LatestEpoch(ctx)
	if err != nil {
		t.Fatalf("LatestEpoch: %v", err)
	}
	if e.Seq != 0 {
		t.Errorf("seq = %d, want 0", e.Seq)
	}
	if !e.Start.Equal(time.Unix(0, start.UnixNano())) {
		t.Errorf("start = %v, want original %v", e.Start, start)
	}
}

func TestBootstrapEpoch_ConcurrentCallers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.BootstrapEpoch(ctx, time.Now()); err != nil {
				t.Errorf("bootstrap: %v", err)
			}
		}()
	}
	wg.Wait()

	var count int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM reset_epochs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("epoch rows = %d, want exactly 1", count)
	}
}

func TestInsertEpoch_SequenceAdvances(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.BootstrapEpoch(ctx, time.Now())
	actor := int64(3)
	e1, err := db.InsertEpoch(ctx, time.Now(), &actor)
	if err != nil {
		t.Fatalf("InsertEpoch: %v", err)
	}
	if e1.Seq != 1 {
		t.Errorf("seq = %d, want 1", e1.Seq)
	}

	latest, _ := db.LatestEpoch(ctx)
	if latest.Seq != e1.Seq {
		t.Errorf("latest seq = %d, want %d", latest.Seq, e1.Seq)
	}
	if latest.GeneratedBy == nil || *latest.GeneratedBy != actor {
		t.Errorf("generated_by = %v, want %d", latest.GeneratedBy, actor)
	}
}

// ─── Session Tests ──────────────────────────────────────────────────────────

func TestSessions_CreateResolveDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sessions := NewSessions(db, time.Hour)

	token, err := sessions.Create(ctx, 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	userID, err := sessions.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if userID != 5 {
		t.Errorf("userID = %d, want 5", userID)
	}

	if err := sessions.Delete(ctx, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sessions.Resolve(ctx, token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("after delete err = %v, want ErrSessionExpired", err)
	}
}

func TestSessions_Expiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sessions := NewSessions(db, -time.Second) // already expired

	token, err := sessions.Create(ctx, 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := sessions.Resolve(ctx, token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

// ─── Credential Cache Tests ─────────────────────────────────────────────────

func TestCredCache_RoundTrip(t *testing.T) {
	cache, err := OpenCredCache(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	if _, err := cache.SessionToken(); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("empty cache err = %v, want ErrNoSession", err)
	}

	if err := cache.SetSessionToken("tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := cache.SessionToken()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("token = %q, want tok-1", got)
	}

	// Replace, then clear
	cache.SetSessionToken("tok-2")
	got, _ = cache.SessionToken()
	if got != "tok-2" {
		t.Errorf("token = %q, want tok-2", got)
	}

	if err := cache.ClearSessionToken(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := cache.SessionToken(); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("after clear err = %v, want ErrNoSession", err)
	}
}
