package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix      = "session:"
	defaultIdempotencyTTL = 24 * time.Hour
	defaultSessionTTL     = 24 * time.Hour
)

// releaseLockScript deletes the lock only when it still carries the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	sessionTTL     time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL, sessionTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &RedisAdapter{client: client, idempotencyTTL: idempotencyTTL, sessionTTL: sessionTTL}
}

func (r *RedisAdapter) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisAdapter) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseLockScript.Run(ctx, r.client, []string{key}, token).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) GetActiveWarehouse(ctx context.Context, sessionID string) (string, error) {
	id, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetActiveWarehouse also refreshes the session's TTL.
func (r *RedisAdapter) SetActiveWarehouse(ctx context.Context, sessionID, warehouseID string) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, warehouseID, r.sessionTTL).Err()
}

func (r *RedisAdapter) ClearActiveWarehouse(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
