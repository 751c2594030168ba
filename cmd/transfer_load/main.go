package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/adapter/storage"
	"github.com/rl1809/inventory-reconciler/internal/adapter/store"
	"github.com/rl1809/inventory-reconciler/internal/config"
	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/core/service"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

const (
	warehouseID     = "load-wh"
	itemName        = "Oil"
	sessionID       = "load-session"
	initialVirtual  = 20
	totalRequests   = 50
	queueSize       = 100
	lockWait        = 10 * time.Second
	requestQuantity = "1"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backend := store.NewMemoryStore()
	if _, err := backend.CreateWarehouse(ctx, domain.Warehouse{
		ID:    warehouseID,
		Name:  "Load Test",
		State: "N/A",
		City:  "N/A",
		VirtualInventory: []domain.InventoryItem{
			{ItemName: itemName, Weight: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(initialVirtual)},
		},
	}); err != nil {
		log.Fatalf("failed to seed warehouse: %v", err)
	}

	// Locks through Redis when configured, so the run exercises the same lease path as production
	var (
		cache    port.CacheRepository
		sessions port.SessionRepository
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		rdb.Del(ctx, "lock:"+warehouseID+":item:"+itemName)

		redisAdapter := storage.NewRedisAdapter(rdb, time.Minute, time.Hour)
		cache, sessions = redisAdapter, redisAdapter
	} else {
		memCache := storage.NewMemoryCache(time.Minute, time.Hour)
		cache, sessions = memCache, memCache
	}

	journal, err := storage.NewMemoryJournal()
	if err != nil {
		log.Fatalf("failed to create journal: %v", err)
	}

	logger := zap.NewNop()
	sessionService := service.NewSessionService(sessions, backend, logger)
	if _, err := sessionService.SelectWarehouse(ctx, sessionID, warehouseID); err != nil {
		log.Fatalf("failed to select warehouse: %v", err)
	}

	reconciliationService := service.NewReconciliationService(backend, cache, journal, sessionService, logger,
		service.ReconciliationOptions{LockWait: lockWait, QueueSize: queueSize})
	defer reconciliationService.Close()

	// Drain the journal queue in background
	go func() {
		for range reconciliationService.GetJournalQueue() {
		}
	}()

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent transfers
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := reconciliationService.TransferInventory(ctx, sessionID, service.TransferRequest{
				ItemName:  itemName,
				Quantity:  requestQuantity,
				RequestID: fmt.Sprintf("load-%d-%d", start.UnixNano(), n),
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== TRANSFER LOAD RESULTS ==========")
	fmt.Printf("Initial Virtual:  %d\n", initialVirtual)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("============================================")

	// Assertions
	if success == initialVirtual && fail == totalRequests-initialVirtual {
		fmt.Printf("PASS: Exactly %d transfers succeeded, %d failed\n", initialVirtual, totalRequests-initialVirtual)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialVirtual, totalRequests-initialVirtual, success, fail)
	}

	// Verify final inventory
	w, err := backend.GetWarehouse(ctx, warehouseID)
	if err != nil {
		log.Fatalf("failed to read warehouse: %v", err)
	}
	total := w.TotalQuantity(itemName)
	fmt.Printf("Final Virtual Entries: %d\n", len(w.VirtualInventory))
	fmt.Printf("Final Total %s:       %s\n", itemName, total)

	if len(w.VirtualInventory) == 0 && total.Equal(decimal.NewFromInt(initialVirtual)) {
		fmt.Println("PASS: Virtual inventory depleted, total conserved")
	} else {
		fmt.Printf("FAIL: Expected no virtual entries and total %d\n", initialVirtual)
	}
}
