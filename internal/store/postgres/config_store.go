package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

const (
	counterNextClassID = "next_class_id"
	counterNextGID     = "next_gid"
)

func peekCounter(ctx context.Context, tx pgx.Tx, name string) (uint64, error) {
	var v string
	err := tx.QueryRow(ctx, `SELECT value::text FROM market_counters WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get counter %s: %w", name, err)
	}
	return parseU64(v)
}

// nextCounter returns the counter's value and stores value+1. A counter
// that already reached limit is exhausted.
func nextCounter(ctx context.Context, tx pgx.Tx, name string, limit uint64) (uint64, error) {
	v, err := peekCounter(ctx, tx, name)
	if err != nil {
		return 0, err
	}
	if v >= limit {
		return 0, domain.ErrNoAvailableID
	}
	const query = `
		INSERT INTO market_counters (name, value) VALUES ($1, $2::text::numeric)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
	if _, err := tx.Exec(ctx, query, name, numArg(v+1)); err != nil {
		return 0, fmt.Errorf("postgres: bump counter %s: %w", name, err)
	}
	return v, nil
}

// configStore implements domain.ConfigProvider over market_params,
// market_counters, categories and whitelist.
type configStore struct{ s *session }

var _ domain.ConfigProvider = configStore{}

func (c configStore) Params(ctx context.Context) (domain.MarketParams, error) {
	var raw []byte
	err := c.s.tx.QueryRow(ctx, `SELECT params FROM market_params WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketParams{}, fmt.Errorf("postgres: params: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.MarketParams{}, fmt.Errorf("postgres: get params: %w", err)
	}
	var p domain.MarketParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.MarketParams{}, fmt.Errorf("postgres: unmarshal params: %w", err)
	}
	return p, nil
}

func (c configStore) SetParams(ctx context.Context, p domain.MarketParams) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("postgres: marshal params: %w", err)
	}
	const query = `
		INSERT INTO market_params (id, params, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET params = EXCLUDED.params, updated_at = NOW()`
	if _, err := c.s.tx.Exec(ctx, query, raw); err != nil {
		return fmt.Errorf("postgres: save params: %w", err)
	}
	return nil
}

func (c configStore) AuctionCloseDelay(ctx context.Context) (domain.BlockNumber, error) {
	p, err := c.Params(ctx)
	return p.AuctionCloseDelay, err
}

func (c configStore) MinOrderDeposit(ctx context.Context) (domain.Balance, error) {
	p, err := c.Params(ctx)
	return p.MinOrderDeposit, err
}

func (c configStore) PlatformFeeRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.PlatformFeeRate, err
}

func (c configStore) MaxCommissionRewardRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.MaxCommissionRewardRate, err
}

func (c configStore) MinCommissionAgentDeposit(ctx context.Context) (domain.Balance, error) {
	p, err := c.Params(ctx)
	return p.MinCommissionAgentDeposit, err
}

func (c configStore) RoyaltiesRate(ctx context.Context) (domain.Rate, error) {
	p, err := c.Params(ctx)
	return p.RoyaltiesRate, err
}

func (c configStore) GetThenIncID(ctx context.Context) (domain.GlobalID, error) {
	if err := c.s.writable(); err != nil {
		return 0, err
	}
	v, err := nextCounter(ctx, c.s.tx, counterNextGID, math.MaxUint64)
	return domain.GlobalID(v), err
}

func (c configStore) PeekNextGID(ctx context.Context) (domain.GlobalID, error) {
	v, err := peekCounter(ctx, c.s.tx, counterNextGID)
	return domain.GlobalID(v), err
}

func (c configStore) CreateCategory(ctx context.Context, metadata []byte) (domain.GlobalID, error) {
	id, err := c.GetThenIncID(ctx)
	if err != nil {
		return 0, err
	}
	const query = `INSERT INTO categories (id, metadata, count) VALUES ($1::text::numeric, $2, 0)`
	if _, err := c.s.tx.Exec(ctx, query, numArg(uint64(id)), metadata); err != nil {
		return 0, fmt.Errorf("postgres: create category: %w", err)
	}
	return id, nil
}

func (c configStore) Category(ctx context.Context, id domain.GlobalID) (domain.Category, error) {
	cat := domain.Category{ID: id}
	var count string
	err := c.s.tx.QueryRow(ctx,
		`SELECT metadata, count::text FROM categories WHERE id = $1::text::numeric`, numArg(uint64(id)),
	).Scan(&cat.Metadata, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, id)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("postgres: get category %d: %w", id, err)
	}
	if cat.Count, err = parseU64(count); err != nil {
		return domain.Category{}, err
	}
	return cat, nil
}

func (c configStore) setCount(ctx context.Context, id domain.GlobalID, count uint64) error {
	_, err := c.s.tx.Exec(ctx,
		`UPDATE categories SET count = $2::text::numeric WHERE id = $1::text::numeric`,
		numArg(uint64(id)), numArg(count))
	if err != nil {
		return fmt.Errorf("postgres: update category %d: %w", id, err)
	}
	return nil
}

func (c configStore) IncCountInCategory(ctx context.Context, id domain.GlobalID) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	cat, err := c.Category(ctx, id)
	if err != nil {
		return err
	}
	if cat.Count == math.MaxUint64 {
		return domain.ErrArithmeticOverflow
	}
	return c.setCount(ctx, id, cat.Count+1)
}

func (c configStore) DecCountInCategory(ctx context.Context, id domain.GlobalID) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	cat, err := c.Category(ctx, id)
	if err != nil {
		return err
	}
	if cat.Count == 0 {
		return domain.ErrArithmeticUnderflow
	}
	return c.setCount(ctx, id, cat.Count-1)
}

func (c configStore) AddWhitelist(ctx context.Context, who domain.AccountID) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	_, err := c.s.tx.Exec(ctx,
		`INSERT INTO whitelist (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`, accountArg(who))
	if err != nil {
		return fmt.Errorf("postgres: add whitelist %s: %w", who.Hex(), err)
	}
	return nil
}

func (c configStore) RemoveWhitelist(ctx context.Context, who domain.AccountID) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	if _, err := c.s.tx.Exec(ctx, `DELETE FROM whitelist WHERE account = $1`, accountArg(who)); err != nil {
		return fmt.Errorf("postgres: remove whitelist %s: %w", who.Hex(), err)
	}
	return nil
}

func (c configStore) IsInWhitelist(ctx context.Context, who domain.AccountID) (bool, error) {
	var ok bool
	err := c.s.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM whitelist WHERE account = $1)`, accountArg(who)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: check whitelist %s: %w", who.Hex(), err)
	}
	return ok, nil
}
