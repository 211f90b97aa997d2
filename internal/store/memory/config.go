package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type configProvider struct{ t *tx }

var _ domain.ConfigProvider = configProvider{}

func (c configProvider) Params(context.Context) (domain.MarketParams, error) {
	if c.t.st.params == nil {
		return domain.MarketParams{}, fmt.Errorf("memory: params: %w", domain.ErrNotFound)
	}
	return *c.t.st.params, nil
}

func (c configProvider) SetParams(_ context.Context, p domain.MarketParams) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	assign(c.t, &c.t.st.params, &p)
	return nil
}

func (c configProvider) AuctionCloseDelay(ctx context.Context) (domain.BlockNumber, error) {
	p, err := c.Params(ctx)
	return p.AuctionCloseDelay, err
}

func (c configProvider) MinOrderDeposit(ctx context.Context) (domain.Balance, error) {
	p, err := c.Params(ctx)
	return p.MinOrderDeposit, err
}

func (c configProvider) PlatformFeeRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.PlatformFeeRate, err
}

func (c configProvider) MaxCommissionRewardRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.MaxCommissionRewardRate, err
}

func (c configProvider) MinCommissionAgentDeposit(ctx context.Context) (domain.Balance, error) {
	p, err := c.Params(ctx)
	return p.MinCommissionAgentDeposit, err
}

func (c configProvider) RoyaltiesRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.RoyaltiesRate, err
}

func (c configProvider) GetThenIncID(context.Context) (domain.GlobalID, error) {
	if err := c.t.writable(); err != nil {
		return 0, err
	}
	id := c.t.st.nextGID
	if id == math.MaxUint64 {
		return 0, domain.ErrNoAvailableID
	}
	assign(c.t, &c.t.st.nextGID, id+1)
	return id, nil
}

func (c configProvider) PeekNextGID(context.Context) (domain.GlobalID, error) {
	return c.t.st.nextGID, nil
}

func (c configProvider) CreateCategory(ctx context.Context, metadata []byte) (domain.GlobalID, error) {
	id, err := c.GetThenIncID(ctx)
	if err != nil {
		return 0, err
	}
	put(c.t, c.t.st.categories, id, domain.Category{
		ID:       id,
		Metadata: append([]byte(nil), metadata...),
	})
	return id, nil
}

func (c configProvider) Category(_ context.Context, id domain.GlobalID) (domain.Category, error) {
	cat, ok := c.t.st.categories[id]
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, id)
	}
	return cat, nil
}

func (c configProvider) IncCountInCategory(ctx context.Context, id domain.GlobalID) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	cat, err := c.Category(ctx, id)
	if err != nil {
		return err
	}
	if cat.Count == math.MaxUint64 {
		return domain.ErrArithmeticOverflow
	}
	cat.Count++
	put(c.t, c.t.st.categories, id, cat)
	return nil
}

func (c configProvider) DecCountInCategory(ctx context.Context, id domain.GlobalID) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	cat, err := c.Category(ctx, id)
	if err != nil {
		return err
	}
	if cat.Count == 0 {
		return domain.ErrArithmeticUnderflow
	}
	cat.Count--
	put(c.t, c.t.st.categories, id, cat)
	return nil
}

func (c configProvider) AddWhitelist(_ context.Context, who domain.AccountID) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	put(c.t, c.t.st.whitelist, who, true)
	return nil
}

func (c configProvider) RemoveWhitelist(_ context.Context, who domain.AccountID) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	remove(c.t, c.t.st.whitelist, who)
	return nil
}

func (c configProvider) IsInWhitelist(_ context.Context, who domain.AccountID) (bool, error) {
	return c.t.st.whitelist[who], nil
}
