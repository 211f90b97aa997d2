package market

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// SwapParams describes one settlement. Payer pays currency and receives
// Items; Payee holds the items and receives the price net of the carve-outs.
type SwapParams struct {
	Payer           domain.AccountID
	Payee           domain.AccountID
	CurrencyID      domain.CurrencyID
	Price           domain.Balance
	Items           []domain.OrderItem
	Treasury        domain.AccountID
	PlatformFeeRate domain.Rate
	Royalty         Royalty
	Commission      *domain.Commission
}

// SwapResult is the split a settlement produced.
type SwapResult struct {
	TradingFee    domain.Balance
	RoyaltyFee    domain.Balance
	CommissionFee domain.Balance
	SellerNet     domain.Balance
}

// Swap moves the price from payer to payee, pays the treasury, the royalty
// beneficiary and an eligible commission agent out of the payee's proceeds,
// then moves the items from payee to payer.
//
// Swap has no rollback of its own. It must run inside a Backend.Update so a
// failed step discards the earlier ones. Ledger errors are returned as is.
func Swap(ctx context.Context, currency domain.CurrencyLedger, nft domain.NFTLedger, p SwapParams) (SwapResult, error) {
	var res SwapResult
	res.TradingFee = p.PlatformFeeRate.MulCeil(p.Price)
	res.RoyaltyFee = p.Royalty.Rate.MulCeil(p.Price)

	if err := currency.Transfer(ctx, p.CurrencyID, p.Payer, p.Payee, p.Price); err != nil {
		return SwapResult{}, err
	}
	if err := currency.Transfer(ctx, p.CurrencyID, p.Payee, p.Treasury, res.TradingFee); err != nil {
		return SwapResult{}, err
	}
	if !p.Royalty.Rate.IsZero() {
		if err := currency.Transfer(ctx, p.CurrencyID, p.Payee, p.Royalty.Beneficiary, res.RoyaltyFee); err != nil {
			return SwapResult{}, err
		}
	}
	if c := p.Commission; c != nil && c.Eligible {
		base := p.Price.SaturatingSub(res.TradingFee).SaturatingSub(res.RoyaltyFee)
		res.CommissionFee = c.Rate.MulCeil(base)
		if err := currency.Transfer(ctx, p.CurrencyID, p.Payee, c.Agent, res.CommissionFee); err != nil {
			return SwapResult{}, err
		}
	}
	for _, item := range p.Items {
		if err := nft.Transfer(ctx, p.Payee, p.Payer, item.ClassID, item.TokenID, item.Quantity); err != nil {
			return SwapResult{}, err
		}
	}

	res.SellerNet = p.Price.
		SaturatingSub(res.TradingFee).
		SaturatingSub(res.RoyaltyFee).
		SaturatingSub(res.CommissionFee)
	return res, nil
}
