package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type nftLedger struct{ t *tx }

var _ domain.NFTLedger = nftLedger{}

func (n nftLedger) holding(who domain.AccountID, class domain.ClassID, token domain.TokenID) domain.TokenHolding {
	return n.t.st.holdings[holdingKey{who, class, token}]
}

func (n nftLedger) setHolding(who domain.AccountID, class domain.ClassID, token domain.TokenID, h domain.TokenHolding) {
	k := holdingKey{who, class, token}
	if h.Quantity == 0 && h.Reserved == 0 {
		remove(n.t, n.t.st.holdings, k)
		return
	}
	put(n.t, n.t.st.holdings, k, h)
}

func (n nftLedger) Transfer(_ context.Context, from, to domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.t.writable(); err != nil {
		return err
	}
	if quantity == 0 || from == to {
		return nil
	}
	src := n.holding(from, class, token)
	if src.Free() < quantity {
		return fmt.Errorf("%w: class %d token %d", domain.ErrInsufficientTokenBalance, class, token)
	}
	dst := n.holding(to, class, token)
	if dst.Quantity > math.MaxUint64-quantity {
		return domain.ErrArithmeticOverflow
	}
	src.Quantity -= quantity
	dst.Quantity += quantity
	n.setHolding(from, class, token, src)
	n.setHolding(to, class, token, dst)
	return nil
}

func (n nftLedger) ReserveTokens(_ context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.t.writable(); err != nil {
		return err
	}
	h := n.holding(who, class, token)
	if h.Free() < quantity {
		return fmt.Errorf("%w: class %d token %d", domain.ErrInsufficientTokenBalance, class, token)
	}
	h.Reserved += quantity
	n.setHolding(who, class, token, h)
	return nil
}

func (n nftLedger) UnreserveTokens(_ context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.t.writable(); err != nil {
		return err
	}
	h := n.holding(who, class, token)
	if h.Reserved < quantity {
		return fmt.Errorf("%w: class %d token %d reserved %d", domain.ErrInsufficientTokenBalance, class, token, h.Reserved)
	}
	h.Reserved -= quantity
	n.setHolding(who, class, token, h)
	return nil
}

func (n nftLedger) AccountToken(_ context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID) (domain.TokenHolding, error) {
	return n.holding(who, class, token), nil
}

func (n nftLedger) TokenChargedRoyalty(_ context.Context, class domain.ClassID, token domain.TokenID) (domain.AccountID, domain.Rate, error) {
	info, ok := n.t.st.tokens[tokenKey{class, token}]
	if !ok {
		return domain.AccountID{}, 0, fmt.Errorf("%w: class %d token %d", domain.ErrTokenNotFound, class, token)
	}
	return info.RoyaltyBeneficiary, info.RoyaltyRate, nil
}

func (n nftLedger) PeekNextClassID(context.Context) (domain.ClassID, error) {
	return n.t.st.nextClassID, nil
}

func (n nftLedger) Class(_ context.Context, class domain.ClassID) (domain.ClassInfo, error) {
	info, ok := n.t.st.classes[class]
	if !ok {
		return domain.ClassInfo{}, fmt.Errorf("%w: class %d", domain.ErrClassNotFound, class)
	}
	return info, nil
}

func (n nftLedger) Token(_ context.Context, class domain.ClassID, token domain.TokenID) (domain.TokenInfo, error) {
	info, ok := n.t.st.tokens[tokenKey{class, token}]
	if !ok {
		return domain.TokenInfo{}, fmt.Errorf("%w: class %d token %d", domain.ErrTokenNotFound, class, token)
	}
	return info, nil
}

func (n nftLedger) CreateClass(_ context.Context, owner domain.AccountID, metadata []byte, royalty domain.Rate) (domain.ClassID, error) {
	if err := n.t.writable(); err != nil {
		return 0, err
	}
	id := n.t.st.nextClassID
	if id == math.MaxUint32 {
		return 0, domain.ErrNoAvailableID
	}
	assign(n.t, &n.t.st.nextClassID, id+1)
	put(n.t, n.t.st.classes, id, domain.ClassInfo{
		ID:          id,
		Owner:       owner,
		Metadata:    append([]byte(nil), metadata...),
		RoyaltyRate: royalty,
	})
	return id, nil
}

func (n nftLedger) Mint(_ context.Context, who, to domain.AccountID, class domain.ClassID, metadata []byte,
	quantity domain.TokenID, royalty *domain.Rate) (domain.TokenID, error) {
	if err := n.t.writable(); err != nil {
		return 0, err
	}
	info, ok := n.t.st.classes[class]
	if !ok {
		return 0, fmt.Errorf("%w: class %d", domain.ErrClassNotFound, class)
	}
	id := info.NextTokenID
	if id == math.MaxUint64 {
		return 0, domain.ErrNoAvailableID
	}
	info.NextTokenID = id + 1
	put(n.t, n.t.st.classes, class, info)

	rate := info.RoyaltyRate
	if royalty != nil {
		rate = *royalty
	}
	put(n.t, n.t.st.tokens, tokenKey{class, id}, domain.TokenInfo{
		ClassID:            class,
		TokenID:            id,
		Metadata:           append([]byte(nil), metadata...),
		Creator:            to,
		RoyaltyRate:        rate,
		RoyaltyBeneficiary: to,
		Quantity:           quantity,
	})
	n.setHolding(to, class, id, domain.TokenHolding{Quantity: quantity})
	return id, nil
}

func (n nftLedger) PutToken(_ context.Context, info domain.TokenInfo) error {
	if err := n.t.writable(); err != nil {
		return err
	}
	k := tokenKey{info.ClassID, info.TokenID}
	if _, ok := n.t.st.tokens[k]; !ok {
		return fmt.Errorf("%w: class %d token %d", domain.ErrTokenNotFound, info.ClassID, info.TokenID)
	}
	info.Metadata = append([]byte(nil), info.Metadata...)
	put(n.t, n.t.st.tokens, k, info)
	return nil
}
