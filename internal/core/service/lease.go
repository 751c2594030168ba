package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/port"
)

const (
	lockKeyPrefix     = "lock:"
	lockRetryInterval = 25 * time.Millisecond
	releaseTimeout    = 2 * time.Second

	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 3 * time.Second
)

// leaseLocker serializes writers on a named resource through CacheRepository leases.
// Billing and order updates share the "{warehouse}:order:{id}" names.
type leaseLocker struct {
	cache  port.CacheRepository
	logger *zap.Logger
	ttl    time.Duration
	wait   time.Duration
}

func newLeaseLocker(cache port.CacheRepository, logger *zap.Logger, ttl, wait time.Duration) *leaseLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &leaseLocker{cache: cache, logger: logger, ttl: ttl, wait: wait}
}

func orderLockName(warehouseID, orderID string) string {
	return warehouseID + ":order:" + orderID
}

func itemLockName(warehouseID, itemName string) string {
	return warehouseID + ":item:" + itemName
}

// lock polls until the lease is taken or the wait budget is spent.
func (l *leaseLocker) lock(ctx context.Context, name string) (func(), error) {
	key := lockKeyPrefix + name
	deadline := time.Now().Add(l.wait)

	for {
		token, ok, err := l.cache.AcquireLock(ctx, key, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
				defer cancel()
				if err := l.cache.ReleaseLock(rctx, key, token); err != nil {
					l.logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTransferInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
