package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// slidingWindowLua counts members of a sorted set scored by microsecond
// timestamps. It trims entries older than the window and adds the request
// only while the count is below the limit. Returns {allowed, count}.
const slidingWindowLua = `
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, math.ceil(window / 1000))
    return {1, count + 1}
end
return {0, count}
`

// RateLimiter implements domain.RateLimiter as a sliding window over a
// sorted set. The HTTP middleware keys it by client address.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

func rateLimitKey(key string) string { return keyPrefix + "ratelimit:" + key }

// Allow records the request and reports whether it fits in the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	now := rl.now().UnixMicro()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	res, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key)},
		now, window.Microseconds(), limit, member).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 2 {
		return false, fmt.Errorf("redis: rate limit %s: unexpected reply length %d", key, len(res))
	}
	return res[0] == 1, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
