package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// BritishAuctionView is an auction with its leading bid.
type BritishAuctionView struct {
	Owner             domain.AccountID         `json:"owner"`
	ID                domain.GlobalID          `json:"id"`
	Auction           domain.BritishAuction    `json:"auction"`
	Bid               domain.BritishAuctionBid `json:"bid"`
	EffectiveDeadline domain.BlockNumber       `json:"effective_deadline"`
}

// DutchAuctionView is an auction with its leading bid and asking price.
type DutchAuctionView struct {
	Owner        domain.AccountID       `json:"owner"`
	ID           domain.GlobalID        `json:"id"`
	Auction      domain.DutchAuction    `json:"auction"`
	Bid          domain.DutchAuctionBid `json:"bid"`
	CurrentPrice domain.Balance         `json:"current_price"`
}

// AccountBalance is an account's position in one currency.
type AccountBalance struct {
	Free     domain.Balance `json:"free"`
	Reserved domain.Balance `json:"reserved"`
}

func (e *Engine) Order(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Order, error) {
	var o domain.Order
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		o, err = s.Listings().Order(ctx, owner, id)
		return notFound(err, domain.ErrOrderNotFound)
	})
	return o, err
}

func (e *Engine) Offer(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Offer, error) {
	var o domain.Offer
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		o, err = s.Listings().Offer(ctx, owner, id)
		return notFound(err, domain.ErrOfferNotFound)
	})
	return o, err
}

// BritishAuction returns the auction, its bid and the block after which it
// stops accepting bids.
func (e *Engine) BritishAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (BritishAuctionView, error) {
	v := BritishAuctionView{Owner: owner, ID: id}
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		if v.Auction, err = s.Listings().BritishAuction(ctx, owner, id); err != nil {
			return notFound(err, domain.ErrBritishAuctionNotFound)
		}
		if v.Bid, err = s.Listings().BritishAuctionBid(ctx, id); err != nil {
			return notFound(err, domain.ErrBritishAuctionBidNotFound)
		}
		delay, err := s.Config().AuctionCloseDelay(ctx)
		if err != nil {
			return err
		}
		v.EffectiveDeadline = EffectiveDeadline(v.Auction.AllowDelay, v.Auction.Deadline, v.Bid.LastBidBlock, delay)
		return nil
	})
	return v, err
}

// DutchAuction returns the auction, its bid and the price a bid would pay
// at the current block.
func (e *Engine) DutchAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (DutchAuctionView, error) {
	now, err := e.clock.CurrentBlock(ctx)
	if err != nil {
		return DutchAuctionView{}, err
	}
	v := DutchAuctionView{Owner: owner, ID: id}
	err = e.view(ctx, func(s domain.Session) error {
		var err error
		if v.Auction, err = s.Listings().DutchAuction(ctx, owner, id); err != nil {
			return notFound(err, domain.ErrDutchAuctionNotFound)
		}
		if v.Bid, err = s.Listings().DutchAuctionBid(ctx, id); err != nil {
			return notFound(err, domain.ErrDutchAuctionBidNotFound)
		}
		a := v.Auction
		v.CurrentPrice = CurrentPrice(a.MaxPrice, a.MinPrice, a.CreatedBlock, a.Deadline, now)
		return nil
	})
	return v, err
}

// Listings returns the keys of open listings matching f.
func (e *Engine) Listings(ctx context.Context, f domain.ListingFilter) ([]domain.ListingRef, error) {
	var refs []domain.ListingRef
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		refs, err = s.Listings().ListListings(ctx, f)
		return err
	})
	return refs, err
}

func (e *Engine) Balance(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (AccountBalance, error) {
	var b AccountBalance
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		if b.Free, err = s.Currency().FreeBalance(ctx, currency, who); err != nil {
			return err
		}
		b.Reserved, err = s.Currency().ReservedBalance(ctx, currency, who)
		return err
	})
	return b, err
}

func (e *Engine) TokenHolding(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID) (domain.TokenHolding, error) {
	var h domain.TokenHolding
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		h, err = s.NFT().AccountToken(ctx, who, class, token)
		return err
	})
	return h, err
}

func (e *Engine) Category(ctx context.Context, id domain.GlobalID) (domain.Category, error) {
	var c domain.Category
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		c, err = s.Config().Category(ctx, id)
		return err
	})
	return c, err
}

func (e *Engine) Params(ctx context.Context) (domain.MarketParams, error) {
	var p domain.MarketParams
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		p, err = s.Config().Params(ctx)
		return err
	})
	return p, err
}
