package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// CreateCategory registers a listing category under a fresh global id.
func (e *Engine) CreateCategory(ctx context.Context, admin domain.AccountID, metadata []byte) (domain.GlobalID, error) {
	var id domain.GlobalID
	err := e.update(ctx, "create_category", func(t *txn) error {
		var err error
		if id, err = t.s.Config().CreateCategory(t.ctx, metadata); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedCategory, Who: admin, ListingID: id})
		return nil
	})
	return id, err
}

func (e *Engine) AddWhitelist(ctx context.Context, who domain.AccountID) error {
	return e.update(ctx, "add_whitelist", func(t *txn) error {
		return t.s.Config().AddWhitelist(t.ctx, who)
	})
}

func (e *Engine) RemoveWhitelist(ctx context.Context, who domain.AccountID) error {
	return e.update(ctx, "remove_whitelist", func(t *txn) error {
		return t.s.Config().RemoveWhitelist(t.ctx, who)
	})
}

// UpdateParams replaces the governance parameters. Open listings see the
// new values on their next transition.
func (e *Engine) UpdateParams(ctx context.Context, admin domain.AccountID, p domain.MarketParams) error {
	return e.update(ctx, "update_params", func(t *txn) error {
		if err := t.s.Config().SetParams(t.ctx, p); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventParamsUpdated, Who: admin})
		return nil
	})
}

// Deposit mints currency into an account.
func (e *Engine) Deposit(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error {
	return e.update(ctx, "deposit", func(t *txn) error {
		return t.s.Currency().Deposit(t.ctx, currency, who, amount)
	})
}

// CreateClass registers an NFT class owned by who. Only whitelisted accounts
// may create classes and the default royalty is capped by governance.
func (e *Engine) CreateClass(ctx context.Context, who domain.AccountID, metadata []byte, royalty domain.Rate) (domain.ClassID, error) {
	var id domain.ClassID
	err := e.update(ctx, "create_class", func(t *txn) error {
		if err := t.ensureWhitelisted(who); err != nil {
			return err
		}
		if err := t.checkRoyaltyCap(royalty); err != nil {
			return err
		}
		var err error
		if id, err = t.s.NFT().CreateClass(t.ctx, who, metadata, royalty); err != nil {
			return err
		}
		t.emit(domain.Event{Kind: domain.EventCreatedClass, Who: who, ListingID: domain.GlobalID(id)})
		return nil
	})
	return id, err
}

// Mint creates quantity units of a new token in class and credits them to
// to. Only the class owner may mint, and only to whitelisted accounts. A nil
// royalty inherits the class default.
func (e *Engine) Mint(ctx context.Context, who, to domain.AccountID, class domain.ClassID, metadata []byte,
	quantity domain.TokenID, royalty *domain.Rate) (domain.TokenID, error) {
	var id domain.TokenID
	err := e.update(ctx, "mint", func(t *txn) error {
		if err := t.ensureWhitelisted(to); err != nil {
			return err
		}
		if quantity == 0 {
			return domain.ErrInvalidQuantity
		}
		info, err := t.s.NFT().Class(t.ctx, class)
		if err != nil {
			return err
		}
		if info.Owner != who {
			return domain.ErrNoPermission
		}
		effective := info.RoyaltyRate
		if royalty != nil {
			effective = *royalty
		}
		if err := t.checkRoyaltyCap(effective); err != nil {
			return err
		}
		if id, err = t.s.NFT().Mint(t.ctx, who, to, class, metadata, quantity, royalty); err != nil {
			return err
		}
		t.emit(domain.Event{
			Kind:         domain.EventMintedToken,
			Who:          who,
			Counterparty: accountPtr(to),
			ListingID:    domain.GlobalID(id),
		})
		return nil
	})
	return id, err
}

func (t *txn) ensureWhitelisted(who domain.AccountID) error {
	ok, err := t.s.Config().IsInWhitelist(t.ctx, who)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccountNotInWhitelist
	}
	return nil
}

func (t *txn) checkRoyaltyCap(rate domain.Rate) error {
	capRate, err := t.s.Config().RoyaltiesRate(t.ctx)
	if err != nil {
		return err
	}
	if rate > capRate {
		return domain.ErrRoyaltyRateTooHigh
	}
	return nil
}

// UpdateTokenRoyaltyBeneficiary hands the royalty of a token to another
// account. Only the current beneficiary may do so.
func (e *Engine) UpdateTokenRoyaltyBeneficiary(ctx context.Context, who domain.AccountID, class domain.ClassID,
	token domain.TokenID, to domain.AccountID) error {
	return e.update(ctx, "update_token_royalty_beneficiary", func(t *txn) error {
		info, err := t.s.NFT().Token(t.ctx, class, token)
		if err != nil {
			return err
		}
		if info.RoyaltyBeneficiary != who {
			return domain.ErrNoPermission
		}
		info.RoyaltyBeneficiary = to
		return t.s.NFT().PutToken(t.ctx, info)
	})
}

// UpdateTokenRoyalty changes a token's royalty rate. The caller must be the
// beneficiary and hold every unit of the token. A nil rate restores the
// class default.
func (e *Engine) UpdateTokenRoyalty(ctx context.Context, who domain.AccountID, class domain.ClassID,
	token domain.TokenID, royalty *domain.Rate) error {
	return e.update(ctx, "update_token_royalty", func(t *txn) error {
		info, err := t.s.NFT().Token(t.ctx, class, token)
		if err != nil {
			return err
		}
		if info.RoyaltyBeneficiary != who {
			return domain.ErrNoPermission
		}
		held, err := t.s.NFT().AccountToken(t.ctx, who, class, token)
		if err != nil {
			return err
		}
		if held.Quantity != info.Quantity {
			return domain.ErrNoPermission
		}
		if royalty == nil {
			ci, err := t.s.NFT().Class(t.ctx, class)
			if err != nil {
				return err
			}
			info.RoyaltyRate = ci.RoyaltyRate
		} else {
			info.RoyaltyRate = *royalty
		}
		if err := t.checkRoyaltyCap(info.RoyaltyRate); err != nil {
			return err
		}
		return t.s.NFT().PutToken(t.ctx, info)
	})
}

// Token returns a token's info.
func (e *Engine) Token(ctx context.Context, class domain.ClassID, token domain.TokenID) (domain.TokenInfo, error) {
	var info domain.TokenInfo
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		info, err = s.NFT().Token(ctx, class, token)
		return err
	})
	return info, err
}

// Class returns a class's info.
func (e *Engine) Class(ctx context.Context, class domain.ClassID) (domain.ClassInfo, error) {
	var info domain.ClassInfo
	err := e.view(ctx, func(s domain.Session) error {
		var err error
		info, err = s.NFT().Class(ctx, class)
		return err
	})
	return info, err
}
