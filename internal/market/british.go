package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// SubmitBritishAuctionRequest opens an ascending auction. A zero
// HammerPrice disables early close.
type SubmitBritishAuctionRequest struct {
	CurrencyID     domain.CurrencyID  `json:"currency_id"`
	HammerPrice    domain.Balance     `json:"hammer_price"`
	MinRaise       domain.Rate        `json:"min_raise"`
	Deposit        domain.Balance     `json:"deposit"`
	InitPrice      domain.Balance     `json:"init_price"`
	Deadline       domain.BlockNumber `json:"deadline"`
	AllowDelay     bool               `json:"allow_delay"`
	CategoryID     domain.GlobalID    `json:"category_id"`
	Items          []domain.OrderItem `json:"items"`
	CommissionRate domain.Rate        `json:"commission_rate"`
}

// SubmitBritishAuction escrows the seller's deposit and items and opens the
// auction with InitPrice as the floor.
func (e *Engine) SubmitBritishAuction(ctx context.Context, who domain.AccountID, req SubmitBritishAuctionRequest) (domain.GlobalID, error) {
	var id domain.GlobalID
	err := e.update(ctx, "submit_british_auction", func(t *txn) error {
		if err := checkItems(req.Items); err != nil {
			return err
		}
		if err := t.checkCommissionRate(req.CommissionRate); err != nil {
			return err
		}
		if err := t.reserveListingDeposit(who, req.Deposit); err != nil {
			return err
		}
		if t.now >= req.Deadline {
			return domain.ErrSubmitWithInvalidDeadline
		}
		if !req.HammerPrice.IsZero() && req.HammerPrice.Cmp(req.InitPrice) <= 0 {
			return domain.ErrInvalidHammerPrice
		}
		if err := EnsureOneRoyalty(t.ctx, t.s.NFT(), req.Items); err != nil {
			return err
		}
		if err := t.escrow.ReserveItems(t.ctx, who, req.Items); err != nil {
			return err
		}

		var err error
		if id, err = t.allocate(req.CategoryID); err != nil {
			return err
		}
		auction := domain.BritishAuction{
			CurrencyID:     req.CurrencyID,
			HammerPrice:    req.HammerPrice,
			MinRaise:       req.MinRaise,
			Deposit:        req.Deposit,
			InitPrice:      req.InitPrice,
			Deadline:       req.Deadline,
			AllowDelay:     req.AllowDelay,
			CategoryID:     req.CategoryID,
			Items:          append([]domain.OrderItem(nil), req.Items...),
			CommissionRate: req.CommissionRate,
		}
		if err := t.s.Listings().PutBritishAuction(t.ctx, who, id, auction); err != nil {
			return err
		}
		if err := t.s.Listings().PutBritishAuctionBid(t.ctx, id, domain.BritishAuctionBid{LastBidPrice: req.InitPrice}); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedBritishAuction, Who: who, ListingID: id})
		return nil
	})
	return id, err
}

// BidBritishAuction places a bid. A bid at or above a nonzero hammer price
// closes the auction at the hammer price.
func (e *Engine) BidBritishAuction(ctx context.Context, purchaser domain.AccountID, req BidRequest) error {
	return e.update(ctx, "bid_british_auction", func(t *txn) error {
		if err := checkBidder(purchaser, req); err != nil {
			return err
		}
		auction, err := t.s.Listings().BritishAuction(t.ctx, req.Owner, req.ID)
		if err != nil {
			return notFound(err, domain.ErrBritishAuctionNotFound)
		}
		stored, err := t.s.Listings().BritishAuctionBid(t.ctx, req.ID)
		if err != nil {
			return notFound(err, domain.ErrBritishAuctionBidNotFound)
		}
		bid := domain.AuctionBid(stored)

		delay, err := t.s.Config().AuctionCloseDelay(t.ctx)
		if err != nil {
			return err
		}
		if EffectiveDeadline(auction.AllowDelay, auction.Deadline, bid.LastBidBlock, delay) < t.now {
			return domain.ErrBritishAuctionClosed
		}

		if !auction.HammerPrice.IsZero() && req.Price.Cmp(auction.HammerPrice) >= 0 {
			if _, _, err := t.deleteBritishAuction(req.Owner, req.ID); err != nil {
				return err
			}
			commission, err := t.settle(purchaser, req.Owner, auction.CurrencyID, auction.HammerPrice,
				auction.Items, req.CommissionAgent, auction.CommissionRate)
			if err != nil {
				return err
			}
			t.emit(domain.Event{
				Kind:           domain.EventHammerBritishAuction,
				Who:            purchaser,
				Counterparty:   accountPtr(req.Owner),
				ListingID:      req.ID,
				Price:          balancePtr(auction.HammerPrice),
				Commission:     commission,
				CommissionData: req.CommissionData,
			})
			return nil
		}

		if !bid.HasBid() && req.Price.LessThan(auction.InitPrice) {
			return domain.ErrPriceTooLow
		}
		if err := t.saveBid(&bid, auction.CurrencyID, auction.MinRaise, purchaser, req.Price,
			req.CommissionAgent, req.CommissionData); err != nil {
			return err
		}
		if err := t.s.Listings().PutBritishAuctionBid(t.ctx, req.ID, domain.BritishAuctionBid(bid)); err != nil {
			return err
		}
		t.emit(domain.Event{
			Kind:         domain.EventBidBritishAuction,
			Who:          purchaser,
			Counterparty: accountPtr(req.Owner),
			ListingID:    req.ID,
			Price:        balancePtr(req.Price),
		})
		return nil
	})
}

// RedeemBritishAuction settles a closed auction with its winner. Anyone may
// call it.
func (e *Engine) RedeemBritishAuction(ctx context.Context, caller, owner domain.AccountID, id domain.GlobalID) error {
	err := e.update(ctx, "redeem_british_auction", func(t *txn) error {
		auction, bid, err := t.deleteBritishAuction(owner, id)
		if err != nil {
			return err
		}
		delay, err := t.s.Config().AuctionCloseDelay(t.ctx)
		if err != nil {
			return err
		}
		if EffectiveDeadline(auction.AllowDelay, auction.Deadline, bid.LastBidBlock, delay) >= t.now {
			return domain.ErrCannotRedeemAuctionUntilDeadline
		}
		if !bid.HasBid() {
			return domain.ErrCannotRedeemAuctionNoBid
		}

		winner := *bid.LastBidAccount
		commission, err := t.settle(winner, owner, auction.CurrencyID, bid.LastBidPrice,
			auction.Items, bid.CommissionAgent, auction.CommissionRate)
		if err != nil {
			return err
		}
		t.emit(domain.Event{
			Kind:           domain.EventRedeemedBritishAuction,
			Who:            winner,
			Counterparty:   accountPtr(owner),
			ListingID:      id,
			Price:          balancePtr(bid.LastBidPrice),
			Commission:     commission,
			CommissionData: bid.CommissionData,
		})
		return nil
	})
	if err == nil {
		e.logRedeem(ctx, "redeem_british_auction", caller, owner, id)
	}
	return err
}

// RemoveBritishAuction cancels the caller's auction. It fails once anyone
// has bid.
func (e *Engine) RemoveBritishAuction(ctx context.Context, who domain.AccountID, id domain.GlobalID) error {
	return e.update(ctx, "remove_british_auction", func(t *txn) error {
		_, bid, err := t.deleteBritishAuction(who, id)
		if err != nil {
			return err
		}
		if bid.HasBid() {
			return domain.ErrCannotRemoveAuction
		}
		t.emit(domain.Event{Kind: domain.EventRemovedBritishAuction, Who: who, ListingID: id})
		return nil
	})
}

// deleteBritishAuction removes the auction and its bid record together and
// releases every reservation behind them.
func (t *txn) deleteBritishAuction(owner domain.AccountID, id domain.GlobalID) (domain.BritishAuction, domain.AuctionBid, error) {
	auction, err := t.s.Listings().BritishAuction(t.ctx, owner, id)
	if err != nil {
		return domain.BritishAuction{}, domain.AuctionBid{}, notFound(err, domain.ErrBritishAuctionNotFound)
	}
	stored, err := t.s.Listings().BritishAuctionBid(t.ctx, id)
	if err != nil {
		return domain.BritishAuction{}, domain.AuctionBid{}, notFound(err, domain.ErrBritishAuctionBidNotFound)
	}
	bid := domain.AuctionBid(stored)

	if err := t.releaseAuction(owner, auction.CurrencyID, auction.Deposit, auction.Items, auction.CategoryID, bid); err != nil {
		return domain.BritishAuction{}, domain.AuctionBid{}, err
	}
	if err := t.s.Listings().DeleteBritishAuction(t.ctx, owner, id); err != nil {
		return domain.BritishAuction{}, domain.AuctionBid{}, err
	}
	if err := t.s.Listings().DeleteBritishAuctionBid(t.ctx, id); err != nil {
		return domain.BritishAuction{}, domain.AuctionBid{}, err
	}
	return auction, bid, nil
}
