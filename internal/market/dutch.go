package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// SubmitDutchAuctionRequest opens a descending-price auction. With
// AllowBritishAuction the first bid reserves the decayed price and the
// auction continues as an ascending one.
type SubmitDutchAuctionRequest struct {
	CurrencyID          domain.CurrencyID  `json:"currency_id"`
	CategoryID          domain.GlobalID    `json:"category_id"`
	Deposit             domain.Balance     `json:"deposit"`
	MinPrice            domain.Balance     `json:"min_price"`
	MaxPrice            domain.Balance     `json:"max_price"`
	Deadline            domain.BlockNumber `json:"deadline"`
	Items               []domain.OrderItem `json:"items"`
	AllowBritishAuction bool               `json:"allow_british_auction"`
	MinRaise            domain.Rate        `json:"min_raise"`
	CommissionRate      domain.Rate        `json:"commission_rate"`
}

// SubmitDutchAuction escrows the seller's deposit and items and opens the
// auction at the current block.
func (e *Engine) SubmitDutchAuction(ctx context.Context, who domain.AccountID, req SubmitDutchAuctionRequest) (domain.GlobalID, error) {
	var id domain.GlobalID
	err := e.update(ctx, "submit_dutch_auction", func(t *txn) error {
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
		if req.MinPrice.IsZero() {
			return domain.ErrInvalidDutchMinPrice
		}
		if req.MinPrice.Cmp(req.MaxPrice) >= 0 {
			return domain.ErrMaxPriceShouldBeGreaterThanMinPrice
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
		auction := domain.DutchAuction{
			CurrencyID:          req.CurrencyID,
			CategoryID:          req.CategoryID,
			Deposit:             req.Deposit,
			MinPrice:            req.MinPrice,
			MaxPrice:            req.MaxPrice,
			Deadline:            req.Deadline,
			CreatedBlock:        t.now,
			Items:               append([]domain.OrderItem(nil), req.Items...),
			AllowBritishAuction: req.AllowBritishAuction,
			MinRaise:            req.MinRaise,
			CommissionRate:      req.CommissionRate,
		}
		if err := t.s.Listings().PutDutchAuction(t.ctx, who, id, auction); err != nil {
			return err
		}
		if err := t.s.Listings().PutDutchAuctionBid(t.ctx, id, domain.DutchAuctionBid{LastBidPrice: req.MinPrice}); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedDutchAuction, Who: who, ListingID: id})
		return nil
	})
	return id, err
}

// BidDutchAuction bids on a Dutch auction.
//
// Without a previous bid the caller's price is ignored and the decayed price
// applies: the auction either sells on the spot or, in British mode, records
// the caller as the leader at that price. Once a leader exists, bids follow
// the ascending rules with the close pushed out by the configured delay.
func (e *Engine) BidDutchAuction(ctx context.Context, purchaser domain.AccountID, req BidRequest) error {
	return e.update(ctx, "bid_dutch_auction", func(t *txn) error {
		if err := checkBidder(purchaser, req); err != nil {
			return err
		}
		auction, err := t.s.Listings().DutchAuction(t.ctx, req.Owner, req.ID)
		if err != nil {
			return notFound(err, domain.ErrDutchAuctionNotFound)
		}
		stored, err := t.s.Listings().DutchAuctionBid(t.ctx, req.ID)
		if err != nil {
			return notFound(err, domain.ErrDutchAuctionBidNotFound)
		}
		bid := domain.AuctionBid(stored)

		switch {
		case !bid.HasBid() && auction.AllowBritishAuction:
			if auction.Deadline < t.now {
				return domain.ErrDutchAuctionClosed
			}
			price := CurrentPrice(auction.MaxPrice, auction.MinPrice, auction.CreatedBlock, auction.Deadline, t.now)
			if err := t.saveBid(&bid, auction.CurrencyID, auction.MinRaise, purchaser, price,
				req.CommissionAgent, req.CommissionData); err != nil {
				return err
			}
			return t.putDutchBid(purchaser, req, bid)

		case !bid.HasBid() && !auction.AllowBritishAuction:
			if auction.Deadline < t.now {
				return domain.ErrDutchAuctionClosed
			}
			price := CurrentPrice(auction.MaxPrice, auction.MinPrice, auction.CreatedBlock, auction.Deadline, t.now)
			if _, _, err := t.deleteDutchAuction(req.Owner, req.ID); err != nil {
				return err
			}
			commission, err := t.settle(purchaser, req.Owner, auction.CurrencyID, price,
				auction.Items, req.CommissionAgent, auction.CommissionRate)
			if err != nil {
				return err
			}
			t.emit(domain.Event{
				Kind:           domain.EventRedeemedDutchAuction,
				Who:            purchaser,
				Counterparty:   accountPtr(req.Owner),
				ListingID:      req.ID,
				Price:          balancePtr(price),
				Commission:     commission,
				CommissionData: req.CommissionData,
			})
			return nil

		case bid.HasBid() && auction.AllowBritishAuction:
			delay, err := t.s.Config().AuctionCloseDelay(t.ctx)
			if err != nil {
				return err
			}
			if EffectiveDeadline(true, 0, bid.LastBidBlock, delay) < t.now {
				return domain.ErrDutchAuctionClosed
			}
			if err := t.saveBid(&bid, auction.CurrencyID, auction.MinRaise, purchaser, req.Price,
				req.CommissionAgent, req.CommissionData); err != nil {
				return err
			}
			return t.putDutchBid(purchaser, req, bid)

		default:
			return domain.ErrDutchAuctionClosed
		}
	})
}

func (t *txn) putDutchBid(purchaser domain.AccountID, req BidRequest, bid domain.AuctionBid) error {
	if err := t.s.Listings().PutDutchAuctionBid(t.ctx, req.ID, domain.DutchAuctionBid(bid)); err != nil {
		return err
	}
	t.emit(domain.Event{
		Kind:         domain.EventBidDutchAuction,
		Who:          purchaser,
		Counterparty: accountPtr(req.Owner),
		ListingID:    req.ID,
		Price:        balancePtr(bid.LastBidPrice),
	})
	return nil
}

// RedeemDutchAuction settles a British-mode Dutch auction after its leader's
// close delay has passed.
func (e *Engine) RedeemDutchAuction(ctx context.Context, caller, owner domain.AccountID, id domain.GlobalID) error {
	err := e.update(ctx, "redeem_dutch_auction", func(t *txn) error {
		auction, bid, err := t.deleteDutchAuction(owner, id)
		if err != nil {
			return err
		}
		delay, err := t.s.Config().AuctionCloseDelay(t.ctx)
		if err != nil {
			return err
		}
		if EffectiveDeadline(true, 0, bid.LastBidBlock, delay) >= t.now {
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
			Kind:           domain.EventRedeemedDutchAuction,
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
		e.logRedeem(ctx, "redeem_dutch_auction", caller, owner, id)
	}
	return err
}

// RemoveDutchAuction cancels the caller's auction. It fails once anyone has
// bid.
func (e *Engine) RemoveDutchAuction(ctx context.Context, who domain.AccountID, id domain.GlobalID) error {
	return e.update(ctx, "remove_dutch_auction", func(t *txn) error {
		_, bid, err := t.deleteDutchAuction(who, id)
		if err != nil {
			return err
		}
		if bid.HasBid() {
			return domain.ErrCannotRemoveAuction
		}
		t.emit(domain.Event{Kind: domain.EventRemovedDutchAuction, Who: who, ListingID: id})
		return nil
	})
}

func (t *txn) deleteDutchAuction(owner domain.AccountID, id domain.GlobalID) (domain.DutchAuction, domain.AuctionBid, error) {
	auction, err := t.s.Listings().DutchAuction(t.ctx, owner, id)
	if err != nil {
		return domain.DutchAuction{}, domain.AuctionBid{}, notFound(err, domain.ErrDutchAuctionNotFound)
	}
	stored, err := t.s.Listings().DutchAuctionBid(t.ctx, id)
	if err != nil {
		return domain.DutchAuction{}, domain.AuctionBid{}, notFound(err, domain.ErrDutchAuctionBidNotFound)
	}
	bid := domain.AuctionBid(stored)

	if err := t.releaseAuction(owner, auction.CurrencyID, auction.Deposit, auction.Items, auction.CategoryID, bid); err != nil {
		return domain.DutchAuction{}, domain.AuctionBid{}, err
	}
	if err := t.s.Listings().DeleteDutchAuction(t.ctx, owner, id); err != nil {
		return domain.DutchAuction{}, domain.AuctionBid{}, err
	}
	if err := t.s.Listings().DeleteDutchAuctionBid(t.ctx, id); err != nil {
		return domain.DutchAuction{}, domain.AuctionBid{}, err
	}
	return auction, bid, nil
}
