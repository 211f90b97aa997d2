package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/clock"
	"github.com/alanyoungcy/nftmart/internal/config"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/events"
	"github.com/alanyoungcy/nftmart/internal/market"
	"github.com/alanyoungcy/nftmart/internal/server/ws"
	"github.com/alanyoungcy/nftmart/internal/store/memory"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seedConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Market.PlatformFeePercent = "1"
	cfg.Genesis = config.GenesisConfig{
		Accounts:   []config.GenesisAccount{{Address: alice.Hex(), Balance: "100"}},
		Whitelist:  []string{alice.Hex(), bob.Hex()},
		Categories: []string{"art", "music"},
	}
	return &cfg
}

func TestSeedPopulatesEmptyStore(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	eng := market.NewEngine(memory.New(), clock.NewManual(1), rec, domain.AccountID{}, discardLogger())
	cfg := seedConfig()

	seeded, err := Seed(ctx, eng, cfg, operator, discardLogger())
	require.NoError(t, err)
	assert.True(t, seeded)

	p, err := eng.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RateFromPercent(1), p.PlatformFeeRate)
	assert.Equal(t, domain.Units(10), p.MinOrderDeposit)

	bal, err := eng.Balance(ctx, domain.NativeCurrencyID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(100), bal.Free)

	_, err = eng.CreateClass(ctx, bob, []byte("c"), 0)
	require.NoError(t, err)

	art, err := eng.Category(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("art"), art.Metadata)
	music, err := eng.Category(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("music"), music.Metadata)

	assert.Contains(t, rec.Kinds(), domain.EventParamsUpdated)
	assert.Contains(t, rec.Kinds(), domain.EventCreatedCategory)
}

func TestSeedSkipsInitialisedStore(t *testing.T) {
	ctx := context.Background()
	eng := market.NewEngine(memory.New(), clock.NewManual(1), events.Discard{}, domain.AccountID{}, discardLogger())
	cfg := seedConfig()

	_, err := Seed(ctx, eng, cfg, operator, discardLogger())
	require.NoError(t, err)

	seeded, err := Seed(ctx, eng, cfg, operator, discardLogger())
	require.NoError(t, err)
	assert.False(t, seeded)

	bal, err := eng.Balance(ctx, domain.NativeCurrencyID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Units(100), bal.Free, "second start must not fund again")
}

func TestSeedRejectsBadBalance(t *testing.T) {
	eng := market.NewEngine(memory.New(), clock.NewManual(1), events.Discard{}, domain.AccountID{}, discardLogger())
	cfg := seedConfig()
	cfg.Genesis.Accounts[0].Balance = "lots"

	_, err := Seed(context.Background(), eng, cfg, operator, discardLogger())
	require.Error(t, err)
}

func TestBuildPipeline(t *testing.T) {
	t.Run("nothing wired discards", func(t *testing.T) {
		p := buildPipeline(&Dependencies{}, nil, discardLogger())
		assert.IsType(t, events.Discard{}, p.sink)
		assert.Empty(t, p.runners)
	})

	t.Run("hub fed directly without a bus", func(t *testing.T) {
		hub := ws.NewHub(nil, nil, discardLogger())
		p := buildPipeline(&Dependencies{}, hub, discardLogger())
		fan, ok := p.sink.(events.Fanout)
		require.True(t, ok)
		require.Len(t, fan, 1)
		assert.Same(t, hub, fan[0])
		assert.Empty(t, p.runners)
	})
}

func TestResolveOperator(t *testing.T) {
	who, err := resolveOperator(config.OperatorConfig{
		PrivateKey: "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), who)

	who, err = resolveOperator(config.OperatorConfig{Address: bob.Hex()})
	require.NoError(t, err)
	assert.Equal(t, bob, who)

	who, err = resolveOperator(config.OperatorConfig{})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID{}, who)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, discardLogger())
	defer a.Close()
	require.ErrorContains(t, a.Run(context.Background(), "trade"), "unsupported mode")
}
