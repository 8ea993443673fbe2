package tender

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/opentender/core"
)

// testStoreContract exercises the behaviour every Store implementation must share.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tn := &Tender{
		ID:               uuid.NewString(),
		ProductName:      "Steel beams",
		Units:            40,
		PaymentCondition: "Net 30",
		DurationHours:    24,
		CreatedAt:        now,
		ExpiresAt:        now.Add(24 * time.Hour),
		Status:           StatusActive,
	}

	t.Run("create and get tender", func(t *testing.T) {
		assert.NoError(t, store.CreateTender(ctx, tn))
		check.True(t, errors.Is(store.CreateTender(ctx, tn), ErrTenderExists))

		got, err := store.GetTender(ctx, tn.ID)
		assert.NoError(t, err)
		check.Equal(t, tn.ProductName, got.ProductName)
		check.Equal(t, StatusActive, got.Status)
		check.Nil(t, got.Preferences)

		_, err = store.GetTender(ctx, "missing")
		check.True(t, errors.Is(err, ErrTenderNotFound))
	})

	t.Run("invitations", func(t *testing.T) {
		inv := &Invitation{Token: uuid.NewString(), TenderID: tn.ID, SupplierID: "supplier_a", Status: InvitationPending, CreatedAt: now}
		assert.NoError(t, store.CreateInvitation(ctx, inv))

		got, err := store.GetInvitation(ctx, inv.Token)
		assert.NoError(t, err)
		check.Equal(t, "supplier_a", got.SupplierID)
		check.Equal(t, tn.ID, got.TenderID)
		check.Equal(t, InvitationPending, got.Status)

		viewed, err := store.MarkInvitationViewed(ctx, inv.Token)
		assert.NoError(t, err)
		check.Equal(t, InvitationViewed, viewed.Status)
		got, err = store.GetInvitation(ctx, inv.Token)
		assert.NoError(t, err)
		check.Equal(t, InvitationViewed, got.Status)

		_, err = store.MarkInvitationViewed(ctx, "unknown-token")
		check.True(t, errors.Is(err, ErrInvalidInvitation))

		second := &Invitation{Token: uuid.NewString(), TenderID: tn.ID, SupplierID: "supplier_b", Status: InvitationPending, CreatedAt: now}
		assert.NoError(t, store.CreateInvitation(ctx, second))
		n, err := store.CountInvitations(ctx, tn.ID)
		assert.NoError(t, err)
		check.Equal(t, 2, n)

		_, err = store.CountInvitations(ctx, "missing")
		check.True(t, errors.Is(err, ErrTenderNotFound))

		_, err = store.GetInvitation(ctx, "unknown-token")
		check.True(t, errors.Is(err, ErrInvalidInvitation))

		orphan := &Invitation{Token: uuid.NewString(), TenderID: "missing", SupplierID: "supplier_a"}
		check.True(t, errors.Is(store.CreateInvitation(ctx, orphan), ErrTenderNotFound))
	})

	t.Run("upsert keeps one bid per supplier", func(t *testing.T) {
		first := &StoredBid{
			Bid:         core.Bid{ID: "bid-a1", SupplierID: "supplier_a", Price: decimal.NewFromInt(100), DeliveryDays: core.Some(5)},
			TenderID:    tn.ID,
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		second := &StoredBid{
			Bid:         core.Bid{ID: "bid-b1", SupplierID: "supplier_b", Price: decimal.NewFromInt(90)},
			TenderID:    tn.ID,
			SubmittedAt: now.Add(time.Minute),
			UpdatedAt:   now.Add(time.Minute),
		}
		revised := &StoredBid{
			Bid:         core.Bid{ID: "bid-a2", SupplierID: "supplier_a", Price: decimal.NewFromInt(85), WarrantyMonths: core.Some(0)},
			TenderID:    tn.ID,
			SubmittedAt: now.Add(2 * time.Minute),
			UpdatedAt:   now.Add(2 * time.Minute),
		}

		_, err := store.UpsertBid(ctx, first)
		assert.NoError(t, err)
		_, err = store.UpsertBid(ctx, second)
		assert.NoError(t, err)
		stored, err := store.UpsertBid(ctx, revised)
		assert.NoError(t, err)

		check.Equal(t, "bid-a1", stored.ID)
		check.True(t, stored.SubmittedAt.Equal(now))
		check.True(t, stored.UpdatedAt.Equal(now.Add(2*time.Minute)))

		bids, err := store.ListBids(ctx, tn.ID)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(bids))
		check.Equal(t, "bid-a1", bids[0].ID)
		check.True(t, bids[0].Price.Equal(decimal.NewFromInt(85)))
		check.Equal(t, core.Some(0), bids[0].WarrantyMonths)
		check.False(t, bids[0].DeliveryDays.Valid)
		check.Equal(t, "bid-b1", bids[1].ID)

		_, err = store.UpsertBid(ctx, &StoredBid{Bid: core.Bid{ID: "x", SupplierID: "s"}, TenderID: "missing"})
		check.True(t, errors.Is(err, ErrTenderNotFound))

		_, err = store.ListBids(ctx, "missing")
		check.True(t, errors.Is(err, ErrTenderNotFound))
	})

	t.Run("upsert rejects expired bid times", func(t *testing.T) {
		late := &StoredBid{
			Bid:       core.Bid{ID: "bid-late", SupplierID: "supplier_c", Price: decimal.NewFromInt(70)},
			TenderID:  tn.ID,
			UpdatedAt: tn.ExpiresAt,
		}
		_, err := store.UpsertBid(ctx, late)
		check.True(t, errors.Is(err, ErrTenderNotActive))
	})

	t.Run("list tenders newest first", func(t *testing.T) {
		newer := &Tender{
			ID:        uuid.NewString(),
			CreatedAt: now.Add(time.Hour),
			ExpiresAt: now.Add(25 * time.Hour),
			Status:    StatusActive,
		}
		assert.NoError(t, store.CreateTender(ctx, newer))

		tenders, err := store.ListTenders(ctx)
		assert.NoError(t, err)
		check.Equal(t, []string{newer.ID, tn.ID}, filterIDs(tenders, func(t Tender) string { return t.ID }, newer.ID, tn.ID))
	})

	t.Run("transition is compare and set", func(t *testing.T) {
		awarded, err := store.TransitionTender(ctx, tn.ID, StatusActive, func(t *Tender) {
			t.Status = StatusAwarded
			t.WinningBidID = "bid-a1"
		})
		assert.NoError(t, err)
		check.Equal(t, StatusAwarded, awarded.Status)

		got, err := store.GetTender(ctx, tn.ID)
		assert.NoError(t, err)
		check.Equal(t, StatusAwarded, got.Status)
		check.Equal(t, "bid-a1", got.WinningBidID)

		called := false
		_, err = store.TransitionTender(ctx, tn.ID, StatusActive, func(t *Tender) { called = true })
		check.True(t, errors.Is(err, ErrTenderNotActive))
		check.False(t, called)

		_, err = store.TransitionTender(ctx, "missing", StatusActive, func(t *Tender) {})
		check.True(t, errors.Is(err, ErrTenderNotFound))
	})

	t.Run("upsert rejected after transition", func(t *testing.T) {
		bid := &StoredBid{
			Bid:       core.Bid{ID: "bid-d1", SupplierID: "supplier_d", Price: decimal.NewFromInt(60)},
			TenderID:  tn.ID,
			UpdatedAt: now.Add(3 * time.Minute),
		}
		_, err := store.UpsertBid(ctx, bid)
		check.True(t, errors.Is(err, ErrTenderNotActive))

		bids, err := store.ListBids(ctx, tn.ID)
		assert.NoError(t, err)
		check.Equal(t, 2, len(bids))
	})

	t.Run("suppliers", func(t *testing.T) {
		older := &Supplier{ID: uuid.NewString(), Name: "Acme", WhatsApp: "+5511999990000", Email: "sales@acme.test", CreatedAt: now, UpdatedAt: now}
		newer := &Supplier{ID: uuid.NewString(), Name: "Globex", WhatsApp: "+5511999990001", Email: "bids@globex.test", CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute)}
		assert.NoError(t, store.CreateSupplier(ctx, older))
		assert.NoError(t, store.CreateSupplier(ctx, newer))
		check.True(t, errors.Is(store.CreateSupplier(ctx, older), ErrSupplierExists))

		got, err := store.GetSupplier(ctx, older.ID)
		assert.NoError(t, err)
		check.Equal(t, "Acme", got.Name)

		list, err := store.ListSuppliers(ctx)
		assert.NoError(t, err)
		check.Equal(t, []string{newer.ID, older.ID}, filterIDs(list, func(s Supplier) string { return s.ID }, older.ID, newer.ID))

		got.Email = "orders@acme.test"
		assert.NoError(t, store.UpdateSupplier(ctx, got))
		again, err := store.GetSupplier(ctx, older.ID)
		assert.NoError(t, err)
		check.Equal(t, "orders@acme.test", again.Email)

		assert.NoError(t, store.DeleteSupplier(ctx, older.ID))
		_, err = store.GetSupplier(ctx, older.ID)
		check.True(t, errors.Is(err, ErrSupplierNotFound))
		check.True(t, errors.Is(store.DeleteSupplier(ctx, older.ID), ErrSupplierNotFound))
		check.True(t, errors.Is(store.UpdateSupplier(ctx, older), ErrSupplierNotFound))

		list, err = store.ListSuppliers(ctx)
		assert.NoError(t, err)
		check.Equal(t, []string{newer.ID}, filterIDs(list, func(s Supplier) string { return s.ID }, older.ID, newer.ID))
	})
}

// filterIDs keeps the IDs of items named in want, preserving list order. A shared Redis
// may hold records from other runs.
func filterIDs[T any](items []T, id func(T) string, want ...string) []string {
	var out []string
	for _, item := range items {
		if slices.Contains(want, id(item)) {
			out = append(out, id(item))
		}
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	prefs := core.DefaultPreferences()
	tn := &Tender{ID: "t1", Status: StatusActive, Preferences: &prefs}
	assert.NoError(t, store.CreateTender(ctx, tn))

	got, err := store.GetTender(ctx, "t1")
	assert.NoError(t, err)
	got.Status = StatusClosed
	got.Preferences.PricePriority = 1

	again, err := store.GetTender(ctx, "t1")
	assert.NoError(t, err)
	check.Equal(t, StatusActive, again.Status)
	check.Equal(t, 4, again.Preferences.PricePriority)
}

// TestRedisStore runs the store contract against a real Redis instance.
// This test requires a Redis instance running on localhost:6379.
// Skip this test if Redis is not available.
func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	testStoreContract(t, NewRedisStore(client))
}

func TestMemoryStore_ConcurrentTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	assert.NoError(t, store.CreateTender(ctx, &Tender{ID: "t1", Status: StatusActive}))

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TransitionTender(ctx, "t1", StatusActive, func(t *Tender) { t.Status = StatusClosed })
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	check.Equal(t, 1, succeeded)
}
