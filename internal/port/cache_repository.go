package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireLock takes a lease on key, returns false if someone else holds it
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseLock drops the lease only if token still owns it
	ReleaseLock(ctx context.Context, key, token string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency forgets a key so a failed request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}

type SessionRepository interface {
	// GetActiveWarehouse returns "" when the session has no warehouse selected
	GetActiveWarehouse(ctx context.Context, sessionID string) (string, error)
	SetActiveWarehouse(ctx context.Context, sessionID, warehouseID string) error
	ClearActiveWarehouse(ctx context.Context, sessionID string) error
}
