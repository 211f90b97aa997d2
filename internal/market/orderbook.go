package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// SubmitOrderRequest lists a bundle at a fixed price.
type SubmitOrderRequest struct {
	CurrencyID     domain.CurrencyID  `json:"currency_id"`
	CategoryID     domain.GlobalID    `json:"category_id"`
	Deposit        domain.Balance     `json:"deposit"`
	Price          domain.Balance     `json:"price"`
	Deadline       domain.BlockNumber `json:"deadline"`
	Items          []domain.OrderItem `json:"items"`
	CommissionRate domain.Rate        `json:"commission_rate"`
}

// TakeRequest takes an order or an offer owned by Owner.
type TakeRequest struct {
	ID              domain.GlobalID   `json:"id"`
	Owner           domain.AccountID  `json:"owner"`
	CommissionAgent *domain.AccountID `json:"commission_agent,omitempty"`
	CommissionData  []byte            `json:"commission_data,omitempty"`
}

// SubmitOfferRequest bids a fixed price for a bundle the caller does not own.
type SubmitOfferRequest struct {
	CurrencyID     domain.CurrencyID  `json:"currency_id"`
	CategoryID     domain.GlobalID    `json:"category_id"`
	Price          domain.Balance     `json:"price"`
	Deadline       domain.BlockNumber `json:"deadline"`
	Items          []domain.OrderItem `json:"items"`
	CommissionRate domain.Rate        `json:"commission_rate"`
}

// SubmitOrder escrows the seller's deposit and items and opens an order.
func (e *Engine) SubmitOrder(ctx context.Context, who domain.AccountID, req SubmitOrderRequest) (domain.GlobalID, error) {
	var id domain.GlobalID
	err := e.update(ctx, "submit_order", func(t *txn) error {
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
		order := domain.Order{
			CurrencyID:     req.CurrencyID,
			Deposit:        req.Deposit,
			Price:          req.Price,
			Deadline:       req.Deadline,
			CategoryID:     req.CategoryID,
			Items:          append([]domain.OrderItem(nil), req.Items...),
			CommissionRate: req.CommissionRate,
		}
		if err := t.s.Listings().PutOrder(t.ctx, who, id, order); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedOrder, Who: who, ListingID: id})
		return nil
	})
	return id, err
}

// TakeOrder buys an open order. The purchaser pays the order price to the
// owner and receives the bundle.
func (e *Engine) TakeOrder(ctx context.Context, purchaser domain.AccountID, req TakeRequest) error {
	return e.update(ctx, "take_order", func(t *txn) error {
		if purchaser == req.Owner {
			return domain.ErrTakeOwnOrder
		}
		if req.CommissionAgent != nil && *req.CommissionAgent == purchaser {
			return domain.ErrSenderTakeCommission
		}

		order, err := t.deleteOrder(req.Owner, req.ID)
		if err != nil {
			return err
		}
		if t.now >= order.Deadline {
			return domain.ErrTakeExpiredOrderOrOffer
		}

		commission, err := t.settle(purchaser, req.Owner, order.CurrencyID, order.Price,
			order.Items, req.CommissionAgent, order.CommissionRate)
		if err != nil {
			return err
		}
		t.emit(domain.Event{
			Kind:           domain.EventTakenOrder,
			Who:            purchaser,
			Counterparty:   accountPtr(req.Owner),
			ListingID:      req.ID,
			Price:          balancePtr(order.Price),
			Commission:     commission,
			CommissionData: req.CommissionData,
		})
		return nil
	})
}

// RemoveOrder cancels the caller's order and returns its escrow. Owners may
// cancel at any time, expired or not.
func (e *Engine) RemoveOrder(ctx context.Context, who domain.AccountID, id domain.GlobalID) error {
	return e.update(ctx, "remove_order", func(t *txn) error {
		if _, err := t.deleteOrder(who, id); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventRemovedOrder, Who: who, ListingID: id})
		return nil
	})
}

// deleteOrder removes an order and releases its deposit, items and
// category slot.
func (t *txn) deleteOrder(owner domain.AccountID, id domain.GlobalID) (domain.Order, error) {
	order, err := t.s.Listings().Order(t.ctx, owner, id)
	if err != nil {
		return domain.Order{}, notFound(err, domain.ErrOrderNotFound)
	}
	if err := t.escrow.ReleaseDeposit(t.ctx, owner, order.Deposit); err != nil {
		return domain.Order{}, err
	}
	if err := t.escrow.ReleaseItems(t.ctx, owner, order.Items); err != nil {
		return domain.Order{}, err
	}
	if err := t.s.Config().DecCountInCategory(t.ctx, order.CategoryID); err != nil {
		return domain.Order{}, err
	}
	if err := t.s.Listings().DeleteOrder(t.ctx, owner, id); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// SubmitOffer escrows the offered price and opens an offer.
func (e *Engine) SubmitOffer(ctx context.Context, who domain.AccountID, req SubmitOfferRequest) (domain.GlobalID, error) {
	var id domain.GlobalID
	err := e.update(ctx, "submit_offer", func(t *txn) error {
		if err := checkItems(req.Items); err != nil {
			return err
		}
		if t.now >= req.Deadline {
			return domain.ErrSubmitWithInvalidDeadline
		}
		if err := t.checkCommissionRate(req.CommissionRate); err != nil {
			return err
		}
		if err := t.escrow.ReserveFunds(t.ctx, req.CurrencyID, who, req.Price); err != nil {
			return err
		}
		if err := EnsureOneRoyalty(t.ctx, t.s.NFT(), req.Items); err != nil {
			return err
		}

		var err error
		if id, err = t.allocate(req.CategoryID); err != nil {
			return err
		}
		offer := domain.Offer{
			CurrencyID:     req.CurrencyID,
			Price:          req.Price,
			Deadline:       req.Deadline,
			CategoryID:     req.CategoryID,
			Items:          append([]domain.OrderItem(nil), req.Items...),
			CommissionRate: req.CommissionRate,
		}
		if err := t.s.Listings().PutOffer(t.ctx, who, id, offer); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedOffer, Who: who, ListingID: id})
		return nil
	})
	return id, err
}

// TakeOffer accepts an offer. The caller is the token owner: it hands over
// the bundle and receives the offered price.
func (e *Engine) TakeOffer(ctx context.Context, tokenOwner domain.AccountID, req TakeRequest) error {
	return e.update(ctx, "take_offer", func(t *txn) error {
		if tokenOwner == req.Owner {
			return domain.ErrTakeOwnOffer
		}
		if req.CommissionAgent != nil && *req.CommissionAgent == tokenOwner {
			return domain.ErrSenderTakeCommission
		}

		offer, err := t.deleteOffer(req.Owner, req.ID)
		if err != nil {
			return err
		}
		if t.now >= offer.Deadline {
			return domain.ErrTakeExpiredOrderOrOffer
		}

		commission, err := t.settle(req.Owner, tokenOwner, offer.CurrencyID, offer.Price,
			offer.Items, req.CommissionAgent, offer.CommissionRate)
		if err != nil {
			return err
		}
		t.emit(domain.Event{
			Kind:           domain.EventTakenOffer,
			Who:            tokenOwner,
			Counterparty:   accountPtr(req.Owner),
			ListingID:      req.ID,
			Price:          balancePtr(offer.Price),
			Commission:     commission,
			CommissionData: req.CommissionData,
		})
		return nil
	})
}

// RemoveOffer cancels the caller's offer and refunds the escrowed price.
func (e *Engine) RemoveOffer(ctx context.Context, who domain.AccountID, id domain.GlobalID) error {
	return e.update(ctx, "remove_offer", func(t *txn) error {
		if _, err := t.deleteOffer(who, id); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventRemovedOffer, Who: who, ListingID: id})
		return nil
	})
}

func (t *txn) deleteOffer(owner domain.AccountID, id domain.GlobalID) (domain.Offer, error) {
	offer, err := t.s.Listings().Offer(t.ctx, owner, id)
	if err != nil {
		return domain.Offer{}, notFound(err, domain.ErrOfferNotFound)
	}
	if err := t.escrow.ReleaseFunds(t.ctx, offer.CurrencyID, owner, offer.Price); err != nil {
		return domain.Offer{}, err
	}
	if err := t.s.Config().DecCountInCategory(t.ctx, offer.CategoryID); err != nil {
		return domain.Offer{}, err
	}
	if err := t.s.Listings().DeleteOffer(t.ctx, owner, id); err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}
