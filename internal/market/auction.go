package market

import (
	"github.com/alanyoungcy/nftmart/internal/domain"
)

// BidRequest bids on the auction (Owner, ID).
type BidRequest struct {
	Price           domain.Balance    `json:"price"`
	Owner           domain.AccountID  `json:"owner"`
	ID              domain.GlobalID   `json:"id"`
	CommissionAgent *domain.AccountID `json:"commission_agent,omitempty"`
	CommissionData  []byte            `json:"commission_data,omitempty"`
}

// checkBidder rejects bids from the seller and bids naming the bidder as
// its own commission agent.
func checkBidder(purchaser domain.AccountID, req BidRequest) error {
	if purchaser == req.Owner {
		return domain.ErrSelfBid
	}
	if req.CommissionAgent != nil && *req.CommissionAgent == purchaser {
		return domain.ErrSenderTakeCommission
	}
	return nil
}

// saveBid replaces the leading bid. A later bid must beat the leader by
// more than minRaise; the leader's escrow is returned and the new bidder's
// price is reserved.
func (t *txn) saveBid(bid *domain.AuctionBid, currency domain.CurrencyID, minRaise domain.Rate,
	purchaser domain.AccountID, price domain.Balance, agent *domain.AccountID, data []byte) error {
	if prev := bid.LastBidAccount; prev != nil {
		lowest := bid.LastBidPrice.SaturatingAdd(minRaise.MulCeil(bid.LastBidPrice))
		if price.Cmp(lowest) <= 0 {
			return domain.ErrPriceTooLow
		}
		if *prev == purchaser {
			return domain.ErrDuplicatedBid
		}
		if err := t.escrow.ReleaseFunds(t.ctx, currency, *prev, bid.LastBidPrice); err != nil {
			return err
		}
	}
	if err := t.escrow.ReserveFunds(t.ctx, currency, purchaser, price); err != nil {
		return err
	}

	bid.LastBidPrice = price
	bid.LastBidAccount = accountPtr(purchaser)
	bid.LastBidBlock = t.now
	bid.CommissionAgent = agent
	bid.CommissionData = data
	return nil
}

// releaseAuction returns an auction's escrow: the leading bidder's funds,
// the seller's deposit and items, and the category slot.
func (t *txn) releaseAuction(owner domain.AccountID, currency domain.CurrencyID, deposit domain.Balance,
	items []domain.OrderItem, category domain.GlobalID, bid domain.AuctionBid) error {
	if bid.LastBidAccount != nil {
		if err := t.escrow.ReleaseFunds(t.ctx, currency, *bid.LastBidAccount, bid.LastBidPrice); err != nil {
			return err
		}
	}
	if err := t.escrow.ReleaseDeposit(t.ctx, owner, deposit); err != nil {
		return err
	}
	if err := t.escrow.ReleaseItems(t.ctx, owner, items); err != nil {
		return err
	}
	return t.s.Config().DecCountInCategory(t.ctx, category)
}
