package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

func (h *harness) submitOrder(price uint64, deadline domain.BlockNumber, rate domain.Rate) domain.GlobalID {
	h.t.Helper()
	id, err := h.eng.SubmitOrder(h.ctx, bob, SubmitOrderRequest{
		CurrencyID:     domain.NativeCurrencyID,
		CategoryID:     h.category,
		Deposit:        domain.NewBalance(10),
		Price:          domain.NewBalance(price),
		Deadline:       deadline,
		Items:          h.bundle(),
		CommissionRate: rate,
	})
	require.NoError(h.t, err)
	return id
}

func TestSubmitOrder(t *testing.T) {
	h := newHarness(t)
	id := h.submitOrder(100, 2, 0)

	ev := h.lastEvent()
	assert.Equal(t, domain.EventCreatedOrder, ev.Kind)
	assert.Equal(t, bob, ev.Who)
	assert.Equal(t, id, ev.ListingID)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, domain.BlockNumber(1), ev.Block)

	h.requireHolding(bob, h.token0, 10, 20)
	h.requireHolding(bob, h.token1, 20, 40)
	assert.Equal(t, uint64(10), h.reserved(bob))

	cat, err := h.eng.Category(h.ctx, h.category)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cat.Count)

	order, err := h.eng.Order(h.ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, "100", order.Price.String())
	assert.Len(t, order.Items, 2)
}

func TestSubmitOrderValidation(t *testing.T) {
	h := newHarness(t)
	base := func() SubmitOrderRequest {
		return SubmitOrderRequest{
			CategoryID: h.category,
			Deposit:    domain.NewBalance(10),
			Price:      domain.NewBalance(100),
			Deadline:   2,
			Items:      h.bundle(),
		}
	}

	tests := []struct {
		name string
		mut  func(r *SubmitOrderRequest)
		want error
	}{
		{"deposit below minimum", func(r *SubmitOrderRequest) { r.Deposit = domain.NewBalance(9) }, domain.ErrSubmitWithInvalidDeposit},
		{"deadline not in future", func(r *SubmitOrderRequest) { r.Deadline = 1 }, domain.ErrSubmitWithInvalidDeadline},
		{"empty bundle", func(r *SubmitOrderRequest) { r.Items = nil }, domain.ErrEmptyTokenList},
		{"zero quantity", func(r *SubmitOrderRequest) { r.Items[0].Quantity = 0 }, domain.ErrInvalidQuantity},
		{"unknown category", func(r *SubmitOrderRequest) { r.CategoryID = 999 }, domain.ErrCategoryNotFound},
		{"more than held", func(r *SubmitOrderRequest) { r.Items[1].Quantity = 41 }, domain.ErrInsufficientTokenBalance},
		{"deposit above balance", func(r *SubmitOrderRequest) { r.Deposit = domain.NewBalance(initialBalance + 1) }, domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mut(&req)
			_, err := h.eng.SubmitOrder(h.ctx, bob, req)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.reserved(bob))
			h.requireHolding(bob, h.token0, 0, 20)
		})
	}

	t.Run("too many tokens", func(t *testing.T) {
		req := base()
		req.Items = make([]domain.OrderItem, domain.MaxTokensPerListing+1)
		_, err := h.eng.SubmitOrder(h.ctx, bob, req)
		assert.ErrorIs(t, err, domain.ErrTooManyTokens)
	})

	t.Run("commission above maximum", func(t *testing.T) {
		h.setParams(func(p *domain.MarketParams) { p.MaxCommissionRewardRate = domain.RateFromPercent(5) })
		req := base()
		req.CommissionRate = domain.RateFromPercent(6)
		_, err := h.eng.SubmitOrder(h.ctx, bob, req)
		assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)
	})
}

func TestSubmitOrderRejectsTwoRoyaltyTokens(t *testing.T) {
	h := newHarness(t)
	ten := domain.RateFromPercent(10)
	token2, err := h.eng.Mint(h.ctx, alice, bob, h.class, nil, 5, &ten)
	require.NoError(t, err)

	_, err = h.eng.SubmitOrder(h.ctx, bob, SubmitOrderRequest{
		CategoryID: h.category,
		Deposit:    domain.NewBalance(10),
		Price:      domain.NewBalance(100),
		Deadline:   2,
		Items: []domain.OrderItem{
			{ClassID: h.class, TokenID: h.token0, Quantity: 1},
			{ClassID: h.class, TokenID: token2, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, domain.ErrTooManyTokenChargedRoyalty)
}

func TestTakeOrderRejectsRoyaltyAddedAfterListing(t *testing.T) {
	h := newHarness(t)
	id := h.submitOrder(100, 2, 0)

	// bob is token1's beneficiary and holds every unit, the 20 listed
	// ones in escrow.
	ten := domain.RateFromPercent(10)
	require.NoError(t, h.eng.UpdateTokenRoyalty(h.ctx, bob, h.class, h.token1, &ten))

	err := h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob})
	assert.ErrorIs(t, err, domain.ErrTooManyTokenChargedRoyalty)

	_, err = h.eng.Order(h.ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(initialBalance), h.free(alice))
	assert.Equal(t, uint64(10), h.reserved(bob))
	h.requireHolding(bob, h.token0, 10, 20)
	h.requireHolding(bob, h.token1, 20, 40)
	h.requireConserved()
}

func TestTakeOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.UpdateTokenRoyaltyBeneficiary(h.ctx, bob, h.class, h.token0, charlie))
	id := h.submitOrder(100, 2, 0)

	require.NoError(t, h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob}))

	assert.Equal(t, uint64(initialBalance-100), h.free(alice))
	assert.Equal(t, uint64(initialBalance+20), h.free(charlie))
	assert.Equal(t, uint64(initialBalance+100-20), h.free(bob))
	assert.Zero(t, h.reserved(bob))
	h.requireHolding(bob, h.token0, 0, 10)
	h.requireHolding(bob, h.token1, 0, 20)
	h.requireHolding(alice, h.token0, 0, 10)
	h.requireHolding(alice, h.token1, 0, 20)
	h.requireConserved()

	ev := h.lastEvent()
	assert.Equal(t, domain.EventTakenOrder, ev.Kind)
	assert.Equal(t, alice, ev.Who)
	require.NotNil(t, ev.Counterparty)
	assert.Equal(t, bob, *ev.Counterparty)
	assert.True(t, ev.Settled())

	_, err := h.eng.Order(h.ctx, bob, id)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	cat, err := h.eng.Category(h.ctx, h.category)
	require.NoError(t, err)
	assert.Zero(t, cat.Count)
}

func TestTakeOrderPaysFeeAndCommission(t *testing.T) {
	h := newHarness(t)
	h.setParams(func(p *domain.MarketParams) {
		p.PlatformFeeRate = domain.RateFromPercent(1)
		p.MinCommissionAgentDeposit = domain.NewBalance(500)
	})
	id := h.submitOrder(100, 2, domain.RateFromPercent(10))

	require.NoError(t, h.eng.TakeOrder(h.ctx, alice, TakeRequest{
		ID:              id,
		Owner:           bob,
		CommissionAgent: &dave,
		CommissionData:  []byte("ref"),
	}))

	// fee ceil(1% of 100) = 1, royalty 20 to bob himself, commission
	// ceil(10% of 79) = 8.
	assert.Equal(t, uint64(1), h.free(h.eng.Treasury()))
	assert.Equal(t, uint64(initialBalance+8), h.free(dave))
	assert.Equal(t, uint64(initialBalance+100-1-8), h.free(bob))
	assert.Equal(t, uint64(initialBalance-100), h.free(alice))
	h.requireConserved()

	ev := h.lastEvent()
	require.NotNil(t, ev.Commission)
	assert.True(t, ev.Commission.Eligible)
	assert.Equal(t, dave, ev.Commission.Agent)
	assert.Equal(t, []byte("ref"), ev.CommissionData)
}

func TestTakeOrderIneligibleAgent(t *testing.T) {
	h := newHarness(t)
	h.setParams(func(p *domain.MarketParams) { p.MinCommissionAgentDeposit = domain.NewBalance(initialBalance + 1) })
	id := h.submitOrder(100, 2, domain.RateFromPercent(10))

	require.NoError(t, h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob, CommissionAgent: &dave}))

	assert.Equal(t, uint64(initialBalance), h.free(dave))
	assert.Equal(t, uint64(initialBalance+100), h.free(bob))
	ev := h.lastEvent()
	require.NotNil(t, ev.Commission)
	assert.False(t, ev.Commission.Eligible)
	assert.Equal(t, dave, ev.Commission.Agent)
}

func TestTakeOrderRejections(t *testing.T) {
	h := newHarness(t)
	id := h.submitOrder(100, 2, 0)

	err := h.eng.TakeOrder(h.ctx, bob, TakeRequest{ID: id, Owner: bob})
	assert.ErrorIs(t, err, domain.ErrTakeOwnOrder)

	err = h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob, CommissionAgent: &alice})
	assert.ErrorIs(t, err, domain.ErrSenderTakeCommission)

	err = h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id + 100, Owner: bob})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	h.clock.Set(2)
	err = h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob})
	assert.ErrorIs(t, err, domain.ErrTakeExpiredOrderOrOffer)

	// The failed take left the order and its escrow untouched.
	_, err = h.eng.Order(h.ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), h.reserved(bob))
	h.requireHolding(bob, h.token0, 10, 20)
	assert.Equal(t, uint64(initialBalance), h.free(alice))
}

func TestTakeOrderInsufficientFundsRollsBack(t *testing.T) {
	h := newHarness(t)
	id := h.submitOrder(initialBalance+1, 10, 0)
	h.rec.Reset()

	err := h.eng.TakeOrder(h.ctx, alice, TakeRequest{ID: id, Owner: bob})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = h.eng.Order(h.ctx, bob, id)
	require.NoError(t, err)
	h.requireHolding(bob, h.token1, 20, 40)
	assert.Empty(t, h.rec.Events())
}

func TestRemoveOrder(t *testing.T) {
	h := newHarness(t)
	id := h.submitOrder(100, 2, 0)

	// Owners may cancel after the deadline.
	h.clock.Set(50)
	require.NoError(t, h.eng.RemoveOrder(h.ctx, bob, id))
	assert.Equal(t, domain.EventRemovedOrder, h.lastEvent().Kind)
	assert.Equal(t, uint64(initialBalance), h.free(bob))
	h.requireHolding(bob, h.token0, 0, 20)
	h.requireHolding(bob, h.token1, 0, 40)

	assert.ErrorIs(t, h.eng.RemoveOrder(h.ctx, bob, id), domain.ErrOrderNotFound)
	assert.ErrorIs(t, h.eng.RemoveOrder(h.ctx, alice, id), domain.ErrOrderNotFound)
}

func (h *harness) submitOffer(who domain.AccountID, price uint64, deadline domain.BlockNumber) domain.GlobalID {
	h.t.Helper()
	id, err := h.eng.SubmitOffer(h.ctx, who, SubmitOfferRequest{
		CurrencyID: domain.NativeCurrencyID,
		CategoryID: h.category,
		Price:      domain.NewBalance(price),
		Deadline:   deadline,
		Items:      h.bundle(),
	})
	require.NoError(h.t, err)
	return id
}

func TestSubmitAndTakeOffer(t *testing.T) {
	h := newHarness(t)
	id := h.submitOffer(charlie, 100, 2)
	assert.Equal(t, domain.EventCreatedOffer, h.lastEvent().Kind)
	assert.Equal(t, uint64(initialBalance-100), h.free(charlie))
	assert.Equal(t, uint64(100), h.reserved(charlie))

	require.NoError(t, h.eng.TakeOffer(h.ctx, bob, TakeRequest{ID: id, Owner: charlie}))

	ev := h.lastEvent()
	assert.Equal(t, domain.EventTakenOffer, ev.Kind)
	assert.Equal(t, bob, ev.Who)
	assert.Equal(t, uint64(initialBalance-100), h.free(charlie))
	assert.Zero(t, h.reserved(charlie))
	assert.Equal(t, uint64(initialBalance+100), h.free(bob))
	h.requireHolding(bob, h.token0, 0, 10)
	h.requireHolding(charlie, h.token0, 0, 10)
	h.requireHolding(charlie, h.token1, 0, 20)
	h.requireConserved()
}

func TestOfferRejections(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.SubmitOffer(h.ctx, charlie, SubmitOfferRequest{
		CategoryID: h.category,
		Price:      domain.NewBalance(initialBalance + 1),
		Deadline:   2,
		Items:      h.bundle(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	id := h.submitOffer(charlie, 100, 2)
	assert.ErrorIs(t, h.eng.TakeOffer(h.ctx, charlie, TakeRequest{ID: id, Owner: charlie}), domain.ErrTakeOwnOffer)
	assert.ErrorIs(t, h.eng.TakeOffer(h.ctx, bob, TakeRequest{ID: id, Owner: charlie, CommissionAgent: &bob}),
		domain.ErrSenderTakeCommission)

	// alice holds none of the bundle.
	assert.ErrorIs(t, h.eng.TakeOffer(h.ctx, alice, TakeRequest{ID: id, Owner: charlie}),
		domain.ErrInsufficientTokenBalance)
	assert.Equal(t, uint64(100), h.reserved(charlie))

	h.clock.Set(2)
	assert.ErrorIs(t, h.eng.TakeOffer(h.ctx, bob, TakeRequest{ID: id, Owner: charlie}),
		domain.ErrTakeExpiredOrderOrOffer)

	require.NoError(t, h.eng.RemoveOffer(h.ctx, charlie, id))
	assert.Equal(t, uint64(initialBalance), h.free(charlie))
	assert.ErrorIs(t, h.eng.RemoveOffer(h.ctx, charlie, id), domain.ErrOfferNotFound)
}

func TestListings(t *testing.T) {
	h := newHarness(t)
	orderID := h.submitOrder(100, 10, 0)
	offerID := h.submitOffer(charlie, 50, 10)

	refs, err := h.eng.Listings(h.ctx, domain.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, domain.ListingRef{Kind: domain.KindOrder, Owner: bob, ID: orderID}, refs[0])
	assert.Equal(t, domain.ListingRef{Kind: domain.KindOffer, Owner: charlie, ID: offerID}, refs[1])

	refs, err = h.eng.Listings(h.ctx, domain.ListingFilter{Owner: &charlie})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, domain.KindOffer, refs[0].Kind)
}
