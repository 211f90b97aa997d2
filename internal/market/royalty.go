package market

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Royalty is the resolved creator cut of a bundle.
type Royalty struct {
	Charged     int
	Beneficiary domain.AccountID
	Rate        domain.Rate
}

// ResolveRoyalty counts the items that charge a royalty and returns the last
// one seen. A bundle is expected to carry at most one.
func ResolveRoyalty(ctx context.Context, nft domain.NFTLedger, items []domain.OrderItem) (Royalty, error) {
	var r Royalty
	for _, item := range items {
		beneficiary, rate, err := nft.TokenChargedRoyalty(ctx, item.ClassID, item.TokenID)
		if err != nil {
			return Royalty{}, err
		}
		if rate.IsZero() {
			continue
		}
		r.Charged++
		r.Beneficiary = beneficiary
		r.Rate = rate
	}
	return r, nil
}

// EnsureOneRoyalty rejects bundles with more than one royalty-bearing token.
func EnsureOneRoyalty(ctx context.Context, nft domain.NFTLedger, items []domain.OrderItem) error {
	r, err := ResolveRoyalty(ctx, nft, items)
	if err != nil {
		return err
	}
	if r.Charged > 1 {
		return fmt.Errorf("%w: %d tokens charge royalty", domain.ErrTooManyTokenChargedRoyalty, r.Charged)
	}
	return nil
}
