package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/omenmarkets/omen/internal/domain"
)

// releaseScript deletes the lock key only when it still holds the caller's
// token, so a holder whose TTL already expired cannot free a lock that was
// since taken by someone else.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager hands out per-key leases backed by Redis SET NX plus a TTL.
// Settlement jobs take one per market before archiving or expiring it.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

var _ domain.LockManager = (*LockManager)(nil)

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseScript),
	}
}

// Acquire takes the lease for key, expiring after ttl if never released.
// The returned func releases the lease and tolerates repeated calls. When
// another holder owns the lease, Acquire returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	redisKey := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled when it unwinds, so
		// the release runs on its own deadline.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.release.Run(releaseCtx, lm.rdb, []string{redisKey}, token).Err()
	}, nil
}
