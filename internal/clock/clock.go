// Package clock provides block height sources for the market engine.
package clock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// BlockTime is the wall-clock duration of one block.
const BlockTime = 6 * time.Second

// Wall derives the block height from the time elapsed since genesis.
type Wall struct {
	genesis   time.Time
	blockTime time.Duration
	now       func() time.Time
}

var _ domain.Clock = (*Wall)(nil)

// NewWall returns a Wall clock. A non-positive blockTime selects BlockTime.
func NewWall(genesis time.Time, blockTime time.Duration) *Wall {
	if blockTime <= 0 {
		blockTime = BlockTime
	}
	return &Wall{genesis: genesis, blockTime: blockTime, now: time.Now}
}

// CurrentBlock returns 0 before genesis.
func (w *Wall) CurrentBlock(ctx context.Context) (domain.BlockNumber, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	elapsed := w.now().Sub(w.genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return domain.BlockNumber(elapsed / w.blockTime), nil
}

// Manual is a clock advanced explicitly. Tests and replay tools drive it.
type Manual struct {
	block atomic.Uint64
}

var _ domain.Clock = (*Manual)(nil)

func NewManual(start domain.BlockNumber) *Manual {
	m := &Manual{}
	m.block.Store(uint64(start))
	return m
}

func (m *Manual) CurrentBlock(context.Context) (domain.BlockNumber, error) {
	return domain.BlockNumber(m.block.Load()), nil
}

// Set jumps to block n.
func (m *Manual) Set(n domain.BlockNumber) { m.block.Store(uint64(n)) }

// Advance moves forward by n blocks and returns the new height.
func (m *Manual) Advance(n domain.BlockNumber) domain.BlockNumber {
	return domain.BlockNumber(m.block.Add(uint64(n)))
}
