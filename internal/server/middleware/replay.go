package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// LocalReplayGuard is an in-process domain.ReplayGuard for single-replica
// deployments without Redis.
type LocalReplayGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	now    func() time.Time
	claims int
}

var _ domain.ReplayGuard = (*LocalReplayGuard)(nil)

// NewLocalReplayGuard creates an empty LocalReplayGuard.
func NewLocalReplayGuard() *LocalReplayGuard {
	return &LocalReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

// Claim records nonce for who until ttl elapses.
func (g *LocalReplayGuard) Claim(_ context.Context, who domain.AccountID, nonce string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.claims++
	if g.claims%256 == 0 {
		for k, exp := range g.seen {
			if !now.Before(exp) {
				delete(g.seen, k)
			}
		}
	}

	key := who.Hex() + ":" + nonce
	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(ttl)
	return true, nil
}
