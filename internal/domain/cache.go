package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld when
// another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ReplayGuard remembers signed request nonces. Claim returns false when the
// nonce was already used by the account within ttl.
type ReplayGuard interface {
	Claim(ctx context.Context, who AccountID, nonce string, ttl time.Duration) (bool, error)
}

// StreamMessage is one entry of a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
