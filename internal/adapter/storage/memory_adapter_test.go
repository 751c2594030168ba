package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

func TestMemoryCache_LockExclusiveUntilExpiry(t *testing.T) {
	cache := NewMemoryCache(0, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, _ := cache.AcquireLock(ctx, "lock:a", time.Second)
	if !ok || token == "" {
		t.Fatal("expected first acquire to succeed")
	}
	if _, ok, _ := cache.AcquireLock(ctx, "lock:a", time.Second); ok {
		t.Error("expected second acquire to fail while held")
	}

	// A crashed holder's lease lapses
	now = now.Add(time.Second)
	if _, ok, _ := cache.AcquireLock(ctx, "lock:a", time.Second); !ok {
		t.Error("expected acquire to succeed after expiry")
	}
}

func TestMemoryCache_ReleaseChecksToken(t *testing.T) {
	cache := NewMemoryCache(0, 0)
	ctx := context.Background()

	token, _, _ := cache.AcquireLock(ctx, "lock:b", time.Minute)
	cache.ReleaseLock(ctx, "lock:b", "not-mine")
	if _, ok, _ := cache.AcquireLock(ctx, "lock:b", time.Minute); ok {
		t.Fatal("release with a foreign token must not free the lock")
	}

	cache.ReleaseLock(ctx, "lock:b", token)
	if _, ok, _ := cache.AcquireLock(ctx, "lock:b", time.Minute); !ok {
		t.Error("expected acquire to succeed after owner released")
	}
}

func TestMemoryCache_SetIdempotency_Concurrent(t *testing.T) {
	cache := NewMemoryCache(time.Minute, 0)
	ctx := context.Background()

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := cache.SetIdempotency(ctx, "idempotency:req-1"); ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}

	cache.ClearIdempotency(ctx, "idempotency:req-1")
	if ok, _ := cache.SetIdempotency(ctx, "idempotency:req-1"); !ok {
		t.Error("expected claim after clear to succeed")
	}
}

func TestMemoryCache_SessionExpires(t *testing.T) {
	cache := NewMemoryCache(0, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	cache.SetActiveWarehouse(ctx, "s1", "wh-1")
	if id, _ := cache.GetActiveWarehouse(ctx, "s1"); id != "wh-1" {
		t.Fatalf("expected wh-1, got %q", id)
	}
	if id, _ := cache.GetActiveWarehouse(ctx, "s2"); id != "" {
		t.Errorf("sessions must not share a selection, got %q", id)
	}

	now = now.Add(time.Hour)
	if id, _ := cache.GetActiveWarehouse(ctx, "s1"); id != "" {
		t.Errorf("expected expired selection, got %q", id)
	}

	cache.SetActiveWarehouse(ctx, "s1", "wh-2")
	cache.ClearActiveWarehouse(ctx, "s1")
	if id, _ := cache.GetActiveWarehouse(ctx, "s1"); id != "" {
		t.Errorf("expected cleared selection, got %q", id)
	}
}

func TestMemoryJournal_ListByWarehouse(t *testing.T) {
	journal, err := NewMemoryJournal()
	if err != nil {
		t.Fatalf("NewMemoryJournal failed: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"Oil", "Rice", "Salt"} {
		journal.Record(ctx, domain.TransferRecord{
			ID:          name,
			Kind:        domain.TransferKindInventory,
			WarehouseID: "wh-1",
			ItemName:    name,
			Quantity:    decimal.NewFromInt(int64(i + 1)),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	journal.Record(ctx, domain.TransferRecord{ID: "x", WarehouseID: "wh-2", ItemName: "Oil", CreatedAt: base})
	// Replay is an upsert
	journal.Record(ctx, domain.TransferRecord{ID: "Oil", WarehouseID: "wh-1", ItemName: "Oil", Quantity: decimal.NewFromInt(1), CreatedAt: base})

	records, err := journal.ListByWarehouse(ctx, "wh-1", 10)
	if err != nil {
		t.Fatalf("ListByWarehouse failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ItemName != "Salt" || records[2].ItemName != "Oil" {
		t.Errorf("expected newest first, got %s..%s", records[0].ItemName, records[2].ItemName)
	}

	limited, _ := journal.ListByWarehouse(ctx, "wh-1", 1)
	if len(limited) != 1 || limited[0].ItemName != "Salt" {
		t.Errorf("expected only Salt, got %+v", limited)
	}
}
