package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

func (h *harness) submitBritish(mut func(r *SubmitBritishAuctionRequest)) domain.GlobalID {
	h.t.Helper()
	req := SubmitBritishAuctionRequest{
		CurrencyID:  domain.NativeCurrencyID,
		HammerPrice: domain.NewBalance(500),
		MinRaise:    domain.RateFromPercent(10),
		Deposit:     domain.NewBalance(10),
		InitPrice:   domain.NewBalance(100),
		Deadline:    100,
		CategoryID:  h.category,
		Items:       []domain.OrderItem{{ClassID: h.class, TokenID: h.token1, Quantity: 20}},
	}
	if mut != nil {
		mut(&req)
	}
	id, err := h.eng.SubmitBritishAuction(h.ctx, bob, req)
	require.NoError(h.t, err)
	return id
}

func (h *harness) bidBritish(who domain.AccountID, id domain.GlobalID, price uint64) error {
	return h.eng.BidBritishAuction(h.ctx, who, BidRequest{Price: domain.NewBalance(price), Owner: bob, ID: id})
}

func TestSubmitBritishAuction(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)

	assert.Equal(t, domain.EventCreatedBritishAuction, h.lastEvent().Kind)
	h.requireHolding(bob, h.token1, 20, 40)

	v, err := h.eng.BritishAuction(h.ctx, bob, id)
	require.NoError(t, err)
	assert.False(t, domain.AuctionBid(v.Bid).HasBid())
	assert.Equal(t, "100", v.Bid.LastBidPrice.String())
	assert.Equal(t, domain.BlockNumber(100), v.EffectiveDeadline)
}

func TestSubmitBritishAuctionValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.SubmitBritishAuction(h.ctx, bob, SubmitBritishAuctionRequest{
		HammerPrice: domain.NewBalance(100),
		Deposit:     domain.NewBalance(10),
		InitPrice:   domain.NewBalance(100),
		Deadline:    100,
		CategoryID:  h.category,
		Items:       h.bundle(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidHammerPrice)
	assert.Zero(t, h.reserved(bob))

	// A zero hammer price disables early close and is always valid.
	h.submitBritish(func(r *SubmitBritishAuctionRequest) { r.HammerPrice = domain.Balance{} })
}

func TestBidBritishAuctionMinRaise(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)

	assert.ErrorIs(t, h.bidBritish(alice, id, 99), domain.ErrPriceTooLow)
	require.NoError(t, h.bidBritish(alice, id, 100))
	assert.Equal(t, uint64(100), h.reserved(alice))
	assert.Equal(t, domain.EventBidBritishAuction, h.lastEvent().Kind)

	// The next bid must beat 100 + ceil(10% of 100) = 110 strictly.
	assert.ErrorIs(t, h.bidBritish(charlie, id, 110), domain.ErrPriceTooLow)
	require.NoError(t, h.bidBritish(charlie, id, 111))
	assert.Zero(t, h.reserved(alice))
	assert.Equal(t, uint64(initialBalance), h.free(alice))
	assert.Equal(t, uint64(111), h.reserved(charlie))

	assert.ErrorIs(t, h.bidBritish(charlie, id, 300), domain.ErrDuplicatedBid)
	h.requireConserved()
}

func TestBidBritishAuctionRejections(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)

	assert.ErrorIs(t, h.bidBritish(bob, id, 200), domain.ErrSelfBid)
	assert.ErrorIs(t, h.eng.BidBritishAuction(h.ctx, alice, BidRequest{
		Price: domain.NewBalance(200), Owner: bob, ID: id, CommissionAgent: &alice,
	}), domain.ErrSenderTakeCommission)
	assert.ErrorIs(t, h.bidBritish(alice, id+50, 200), domain.ErrBritishAuctionNotFound)
	assert.ErrorIs(t, h.bidBritish(alice, id, initialBalance+1), domain.ErrInsufficientBalance)

	h.clock.Set(101)
	assert.ErrorIs(t, h.bidBritish(alice, id, 200), domain.ErrBritishAuctionClosed)
}

func TestBidBritishAuctionHammer(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)
	require.NoError(t, h.bidBritish(alice, id, 100))

	require.NoError(t, h.bidBritish(dave, id, 600))

	ev := h.lastEvent()
	assert.Equal(t, domain.EventHammerBritishAuction, ev.Kind)
	require.NotNil(t, ev.Price)
	assert.Equal(t, "500", ev.Price.String())

	assert.Equal(t, uint64(initialBalance-500), h.free(dave))
	assert.Equal(t, uint64(initialBalance), h.free(alice))
	assert.Zero(t, h.reserved(alice))
	assert.Equal(t, uint64(initialBalance+500), h.free(bob))
	h.requireHolding(dave, h.token1, 0, 20)
	h.requireHolding(bob, h.token1, 0, 20)
	h.requireConserved()

	_, err := h.eng.BritishAuction(h.ctx, bob, id)
	assert.ErrorIs(t, err, domain.ErrBritishAuctionNotFound)
}

func TestBritishAuctionDelay(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(func(r *SubmitBritishAuctionRequest) {
		r.AllowDelay = true
		r.HammerPrice = domain.Balance{}
	})

	h.clock.Set(95)
	require.NoError(t, h.bidBritish(alice, id, 100))

	// The bid at 95 pushes the close to 95 + 100.
	h.clock.Set(150)
	require.NoError(t, h.bidBritish(charlie, id, 200))

	v, err := h.eng.BritishAuction(h.ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockNumber(250), v.EffectiveDeadline)

	h.clock.Set(250)
	assert.ErrorIs(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id), domain.ErrCannotRedeemAuctionUntilDeadline)
	h.clock.Set(251)
	assert.ErrorIs(t, h.bidBritish(dave, id, 400), domain.ErrBritishAuctionClosed)
	require.NoError(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id))
	assert.Equal(t, uint64(initialBalance-200), h.free(charlie))
	h.requireHolding(charlie, h.token1, 0, 20)
}

func TestRedeemBritishAuction(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)
	require.NoError(t, h.bidBritish(alice, id, 150))

	h.clock.Set(100)
	assert.ErrorIs(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id), domain.ErrCannotRedeemAuctionUntilDeadline)
	// The failed redeem left the escrow in place.
	assert.Equal(t, uint64(150), h.reserved(alice))

	h.clock.Set(101)
	logs := h.captureLog()
	require.NoError(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id))
	ev := h.lastEvent()
	assert.Equal(t, domain.EventRedeemedBritishAuction, ev.Kind)
	assert.Equal(t, alice, ev.Who)
	assert.Contains(t, logs.String(), "caller="+dave.Hex())

	assert.Equal(t, uint64(initialBalance-150), h.free(alice))
	assert.Zero(t, h.reserved(alice))
	assert.Equal(t, uint64(initialBalance+150), h.free(bob))
	h.requireHolding(alice, h.token1, 0, 20)
	h.requireConserved()

	assert.ErrorIs(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id), domain.ErrBritishAuctionNotFound)
}

func TestRedeemBritishAuctionWithoutBid(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)
	h.clock.Set(101)
	assert.ErrorIs(t, h.eng.RedeemBritishAuction(h.ctx, dave, bob, id), domain.ErrCannotRedeemAuctionNoBid)

	require.NoError(t, h.eng.RemoveBritishAuction(h.ctx, bob, id))
	assert.Equal(t, uint64(initialBalance), h.free(bob))
}

func TestRemoveBritishAuction(t *testing.T) {
	h := newHarness(t)
	id := h.submitBritish(nil)
	require.NoError(t, h.eng.RemoveBritishAuction(h.ctx, bob, id))
	assert.Equal(t, domain.EventRemovedBritishAuction, h.lastEvent().Kind)
	h.requireHolding(bob, h.token1, 0, 40)
	assert.Zero(t, h.reserved(bob))

	assert.ErrorIs(t, h.eng.RemoveBritishAuction(h.ctx, bob, id), domain.ErrBritishAuctionNotFound)

	id = h.submitBritish(nil)
	require.NoError(t, h.bidBritish(alice, id, 100))
	assert.ErrorIs(t, h.eng.RemoveBritishAuction(h.ctx, bob, id), domain.ErrCannotRemoveAuction)
	assert.Equal(t, uint64(100), h.reserved(alice))
	h.requireHolding(bob, h.token1, 20, 40)
}
