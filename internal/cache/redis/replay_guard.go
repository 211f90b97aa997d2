package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// ReplayGuard implements domain.ReplayGuard. Each (account, nonce) pair is a
// key that lives for ttl; a second claim inside that window fails.
//
// Key schema:
//
//	nftmart:nonce:{account}:{nonce} - "1"
type ReplayGuard struct {
	rdb *redis.Client
}

func NewReplayGuard(c *Client) *ReplayGuard {
	return &ReplayGuard{rdb: c.Underlying()}
}

func nonceKey(who domain.AccountID, nonce string) string {
	return keyPrefix + "nonce:" + who.Hex() + ":" + nonce
}

func (g *ReplayGuard) Claim(ctx context.Context, who domain.AccountID, nonce string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, nonceKey(who, nonce), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim nonce %s: %w", who.Hex(), err)
	}
	return ok, nil
}

var _ domain.ReplayGuard = (*ReplayGuard)(nil)
