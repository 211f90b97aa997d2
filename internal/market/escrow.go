package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Escrow reserves and releases what backs an open listing: deposits in the
// native currency, bid or offer amounts in the listing currency, and NFT
// quantities.
type Escrow struct {
	currency domain.CurrencyLedger
	nft      domain.NFTLedger
}

// NewEscrow binds an Escrow to the ledgers of one session.
func NewEscrow(currency domain.CurrencyLedger, nft domain.NFTLedger) Escrow {
	return Escrow{currency: currency, nft: nft}
}

func (e Escrow) ReserveDeposit(ctx context.Context, owner domain.AccountID, amount domain.Balance) error {
	return e.currency.Reserve(ctx, domain.NativeCurrencyID, owner, amount)
}

// ReleaseDeposit saturates: it releases whatever is reserved up to amount.
func (e Escrow) ReleaseDeposit(ctx context.Context, owner domain.AccountID, amount domain.Balance) error {
	_, err := e.currency.Unreserve(ctx, domain.NativeCurrencyID, owner, amount)
	return err
}

func (e Escrow) ReserveFunds(ctx context.Context, currency domain.CurrencyID, owner domain.AccountID, amount domain.Balance) error {
	return e.currency.Reserve(ctx, currency, owner, amount)
}

func (e Escrow) ReleaseFunds(ctx context.Context, currency domain.CurrencyID, owner domain.AccountID, amount domain.Balance) error {
	_, err := e.currency.Unreserve(ctx, currency, owner, amount)
	return err
}

// ReserveItems reserves every line of the bundle from owner's free quantity.
func (e Escrow) ReserveItems(ctx context.Context, owner domain.AccountID, items []domain.OrderItem) error {
	for _, item := range items {
		if err := e.nft.ReserveTokens(ctx, owner, item.ClassID, item.TokenID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (e Escrow) ReleaseItems(ctx context.Context, owner domain.AccountID, items []domain.OrderItem) error {
	for _, item := range items {
		if err := e.nft.UnreserveTokens(ctx, owner, item.ClassID, item.TokenID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
