package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// unlockLua deletes the lock only while it still carries the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and a
// token-checked release. The archive job uses it so only one replica exports
// a given window.
type LockManager struct {
	rdb    *redis.Client
	unlock *redis.Script
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:    c.Underlying(),
		unlock: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string { return keyPrefix + "lock:" + key }

// Acquire takes the lock for ttl. The returned release func is idempotent and
// runs on its own short context so it still works after ctx is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlock.Run(releaseCtx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
