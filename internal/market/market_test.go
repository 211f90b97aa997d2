package market

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/clock"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/events"
	"github.com/alanyoungcy/nftmart/internal/store/memory"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	charlie = common.HexToAddress("0x00000000000000000000000000000000c4a411e0")
	dave    = common.HexToAddress("0x000000000000000000000000000000000000da7e")
)

const initialBalance = 1000

// harness is an engine over the in-memory backend with one class owned by
// alice and two tokens minted to bob: token 0 (20 units, 20% royalty) and
// token 1 (40 units, no royalty).
type harness struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	clock *clock.Manual
	rec   *events.Recorder
	eng   *Engine

	category domain.GlobalID
	class    domain.ClassID
	token0   domain.TokenID
	token1   domain.TokenID
}

func defaultParams() domain.MarketParams {
	return domain.MarketParams{
		MinOrderDeposit:           domain.NewBalance(10),
		PlatformFeeRate:           0,
		MaxCommissionRewardRate:   domain.RateOne,
		MinCommissionAgentDeposit: domain.NewBalance(0),
		RoyaltiesRate:             domain.RateFromPercent(50),
		AuctionCloseDelay:         10 * domain.Minutes,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: memory.New(),
		clock: clock.NewManual(1),
		rec:   &events.Recorder{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.eng = NewEngine(h.store, h.clock, h.rec, domain.AccountID{}, logger)

	require.NoError(t, h.eng.UpdateParams(h.ctx, alice, defaultParams()))
	for _, who := range []domain.AccountID{alice, bob, charlie, dave} {
		require.NoError(t, h.eng.Deposit(h.ctx, domain.NativeCurrencyID, who, domain.NewBalance(initialBalance)))
	}
	require.NoError(t, h.eng.AddWhitelist(h.ctx, alice))
	require.NoError(t, h.eng.AddWhitelist(h.ctx, bob))

	var err error
	h.category, err = h.eng.CreateCategory(h.ctx, alice, []byte("art"))
	require.NoError(t, err)
	h.class, err = h.eng.CreateClass(h.ctx, alice, []byte("class"), 0)
	require.NoError(t, err)

	twenty := domain.RateFromPercent(20)
	zero := domain.Rate(0)
	h.token0, err = h.eng.Mint(h.ctx, alice, bob, h.class, []byte("t0"), 20, &twenty)
	require.NoError(t, err)
	h.token1, err = h.eng.Mint(h.ctx, alice, bob, h.class, []byte("t1"), 40, &zero)
	require.NoError(t, err)

	h.rec.Reset()
	return h
}

func (h *harness) bundle() []domain.OrderItem {
	return []domain.OrderItem{
		{ClassID: h.class, TokenID: h.token0, Quantity: 10},
		{ClassID: h.class, TokenID: h.token1, Quantity: 20},
	}
}

func (h *harness) free(who domain.AccountID) uint64 {
	h.t.Helper()
	b, err := h.eng.Balance(h.ctx, domain.NativeCurrencyID, who)
	require.NoError(h.t, err)
	n, ok := b.Free.Uint64()
	require.True(h.t, ok)
	return n
}

func (h *harness) reserved(who domain.AccountID) uint64 {
	h.t.Helper()
	b, err := h.eng.Balance(h.ctx, domain.NativeCurrencyID, who)
	require.NoError(h.t, err)
	n, ok := b.Reserved.Uint64()
	require.True(h.t, ok)
	return n
}

// requireHolding asserts who holds quantity units of token with reserved of
// them escrowed.
func (h *harness) requireHolding(who domain.AccountID, token domain.TokenID, reserved, quantity domain.TokenID) {
	h.t.Helper()
	got, err := h.eng.TokenHolding(h.ctx, who, h.class, token)
	require.NoError(h.t, err)
	require.Equal(h.t, domain.TokenHolding{Quantity: quantity, Reserved: reserved}, got)
}

// requireConserved checks that no currency was created or destroyed.
func (h *harness) requireConserved() {
	h.t.Helper()
	var sum, issuance domain.Balance
	err := h.store.View(h.ctx, func(s domain.Session) error {
		var err error
		issuance, err = s.Currency().TotalIssuance(h.ctx, domain.NativeCurrencyID)
		if err != nil {
			return err
		}
		for _, who := range []domain.AccountID{alice, bob, charlie, dave, h.eng.Treasury()} {
			total, err := s.Currency().TotalBalance(h.ctx, domain.NativeCurrencyID, who)
			if err != nil {
				return err
			}
			sum = sum.SaturatingAdd(total)
		}
		return nil
	})
	require.NoError(h.t, err)
	require.Equal(h.t, issuance.String(), sum.String())
}

func (h *harness) setParams(mut func(p *domain.MarketParams)) {
	h.t.Helper()
	p, err := h.eng.Params(h.ctx)
	require.NoError(h.t, err)
	mut(&p)
	require.NoError(h.t, h.eng.UpdateParams(h.ctx, alice, p))
	h.rec.Reset()
}

func (h *harness) lastEvent() domain.Event {
	h.t.Helper()
	evs := h.rec.Events()
	require.NotEmpty(h.t, evs)
	return evs[len(evs)-1]
}

// captureLog rebuilds the engine over the same state with a logger writing
// to the returned buffer.
func (h *harness) captureLog() *bytes.Buffer {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h.eng = NewEngine(h.store, h.clock, h.rec, h.eng.Treasury(), logger)
	return &buf
}
