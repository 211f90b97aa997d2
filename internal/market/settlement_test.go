package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/store/memory"
)

// seedSwap funds alice and mints token 0 of a new class to bob, with its
// royalty paid to charlie.
func seedSwap(t *testing.T, st *memory.Store, royalty domain.Rate) domain.ClassID {
	t.Helper()
	ctx := context.Background()
	var class domain.ClassID
	require.NoError(t, st.Update(ctx, func(s domain.Session) error {
		if err := s.Currency().Deposit(ctx, domain.NativeCurrencyID, alice, domain.NewBalance(1000)); err != nil {
			return err
		}
		var err error
		if class, err = s.NFT().CreateClass(ctx, charlie, nil, royalty); err != nil {
			return err
		}
		token, err := s.NFT().Mint(ctx, charlie, bob, class, nil, 5, nil)
		if err != nil {
			return err
		}
		info, err := s.NFT().Token(ctx, class, token)
		if err != nil {
			return err
		}
		info.RoyaltyBeneficiary = charlie
		return s.NFT().PutToken(ctx, info)
	}))
	return class
}

func TestSwapSplit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	class := seedSwap(t, st, domain.RateFromPercent(5))
	treasury := DefaultTreasury()

	var res SwapResult
	require.NoError(t, st.Update(ctx, func(s domain.Session) error {
		royalty, err := ResolveRoyalty(ctx, s.NFT(), []domain.OrderItem{{ClassID: class, TokenID: 0, Quantity: 5}})
		if err != nil {
			return err
		}
		res, err = Swap(ctx, s.Currency(), s.NFT(), SwapParams{
			Payer:           alice,
			Payee:           bob,
			Price:           domain.NewBalance(100),
			Items:           []domain.OrderItem{{ClassID: class, TokenID: 0, Quantity: 5}},
			Treasury:        treasury,
			PlatformFeeRate: domain.RateFromPercent(20),
			Royalty:         royalty,
			Commission:      &domain.Commission{Eligible: true, Agent: dave, Rate: domain.RateFromPercent(50)},
		})
		return err
	}))

	// fee 20, royalty 5 to charlie, commission ceil(50% of 75) = 38.
	assert.Equal(t, "20", res.TradingFee.String())
	assert.Equal(t, "5", res.RoyaltyFee.String())
	assert.Equal(t, "38", res.CommissionFee.String())
	assert.Equal(t, "37", res.SellerNet.String())

	require.NoError(t, st.View(ctx, func(s domain.Session) error {
		for who, want := range map[domain.AccountID]string{
			alice:    "900",
			bob:      "37",
			charlie:  "5",
			dave:     "38",
			treasury: "20",
		} {
			got, err := s.Currency().FreeBalance(ctx, domain.NativeCurrencyID, who)
			require.NoError(t, err)
			assert.Equal(t, want, got.String(), who.Hex())
		}
		held, err := s.NFT().AccountToken(ctx, alice, class, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.TokenID(5), held.Quantity)
		return nil
	}))
}

func TestSwapRollsBackWithUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	class := seedSwap(t, st, 0)

	err := st.Update(ctx, func(s domain.Session) error {
		_, err := Swap(ctx, s.Currency(), s.NFT(), SwapParams{
			Payer:    alice,
			Payee:    bob,
			Price:    domain.NewBalance(100),
			Items:    []domain.OrderItem{{ClassID: class, TokenID: 0, Quantity: 6}},
			Treasury: DefaultTreasury(),
		})
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientTokenBalance)

	require.NoError(t, st.View(ctx, func(s domain.Session) error {
		got, err := s.Currency().FreeBalance(ctx, domain.NativeCurrencyID, alice)
		require.NoError(t, err)
		assert.Equal(t, "1000", got.String())
		got, err = s.Currency().FreeBalance(ctx, domain.NativeCurrencyID, bob)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
		return nil
	}))
}

func TestResolveRoyalty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	class := seedSwap(t, st, domain.RateFromPercent(5))

	require.NoError(t, st.Update(ctx, func(s domain.Session) error {
		zero := domain.Rate(0)
		free, err := s.NFT().Mint(ctx, charlie, bob, class, nil, 1, &zero)
		require.NoError(t, err)
		ten := domain.RateFromPercent(10)
		second, err := s.NFT().Mint(ctx, charlie, bob, class, nil, 1, &ten)
		require.NoError(t, err)

		r, err := ResolveRoyalty(ctx, s.NFT(), []domain.OrderItem{
			{ClassID: class, TokenID: free, Quantity: 1},
			{ClassID: class, TokenID: 0, Quantity: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, r.Charged)
		assert.Equal(t, charlie, r.Beneficiary)
		assert.Equal(t, domain.RateFromPercent(5), r.Rate)

		err = EnsureOneRoyalty(ctx, s.NFT(), []domain.OrderItem{
			{ClassID: class, TokenID: 0, Quantity: 1},
			{ClassID: class, TokenID: second, Quantity: 1},
		})
		assert.ErrorIs(t, err, domain.ErrTooManyTokenChargedRoyalty)

		_, err = ResolveRoyalty(ctx, s.NFT(), []domain.OrderItem{{ClassID: class, TokenID: 99, Quantity: 1}})
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
		return nil
	}))
}

func TestDefaultTreasuryIsStable(t *testing.T) {
	assert.Equal(t, DefaultTreasury(), DefaultTreasury())
	assert.NotEqual(t, domain.AccountID{}, DefaultTreasury())
}
