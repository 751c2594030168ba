package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is the single-process stand-in for RedisAdapter.
type MemoryCache struct {
	mu             sync.Mutex
	entries        map[string]cacheEntry
	idempotencyTTL time.Duration
	sessionTTL     time.Duration
	now            func() time.Time
}

func NewMemoryCache(idempotencyTTL, sessionTTL time.Duration) *MemoryCache {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &MemoryCache{
		entries:        make(map[string]cacheEntry),
		idempotencyTTL: idempotencyTTL,
		sessionTTL:     sessionTTL,
		now:            time.Now,
	}
}

// setNX must be called with mu held.
func (c *MemoryCache) setNX(key, value string, ttl time.Duration) bool {
	now := c.now()
	if e, ok := c.entries[key]; ok && !e.expired(now) {
		return false
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
	return true
}

func (c *MemoryCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := uuid.NewString()
	if !c.setNX(key, token, ttl) {
		return "", false, nil
	}
	return token, true, nil
}

func (c *MemoryCache) ReleaseLock(ctx context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.value == token {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setNX(key, "1", c.idempotencyTTL), nil
}

func (c *MemoryCache) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) GetActiveWarehouse(ctx context.Context, sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sessionKeyPrefix+sessionID]
	if !ok || e.expired(c.now()) {
		return "", nil
	}
	return e.value, nil
}

func (c *MemoryCache) SetActiveWarehouse(ctx context.Context, sessionID, warehouseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionKeyPrefix+sessionID] = cacheEntry{value: warehouseID, expiresAt: c.now().Add(c.sessionTTL)}
	return nil
}

func (c *MemoryCache) ClearActiveWarehouse(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionKeyPrefix+sessionID)
	return nil
}

const transfersTable = "transfers"

var journalSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		transfersTable: {
			Name: transfersTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"warehouse": {
					Name:    "warehouse",
					Indexer: &memdb.StringFieldIndex{Field: "WarehouseID"},
				},
			},
		},
	},
}

// MemoryJournal is the transfer journal used when no MySQL DSN is configured.
type MemoryJournal struct {
	db *memdb.MemDB
}

func NewMemoryJournal() (*MemoryJournal, error) {
	db, err := memdb.NewMemDB(journalSchema)
	if err != nil {
		return nil, fmt.Errorf("create journal db: %w", err)
	}
	return &MemoryJournal{db: db}, nil
}

// Record upserts on the record ID, so replays are harmless.
func (j *MemoryJournal) Record(ctx context.Context, r domain.TransferRecord) error {
	txn := j.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(transfersTable, &r); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	txn.Commit()
	return nil
}

func (j *MemoryJournal) ListByWarehouse(ctx context.Context, warehouseID string, limit int) ([]domain.TransferRecord, error) {
	txn := j.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(transfersTable, "warehouse", warehouseID)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}

	var out []domain.TransferRecord
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*domain.TransferRecord))
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
