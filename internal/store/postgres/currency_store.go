package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// currencyStore implements domain.CurrencyLedger over currency_accounts and
// currency_issuance.
type currencyStore struct{ s *session }

var _ domain.CurrencyLedger = currencyStore{}

type currencyAccount struct {
	free     domain.Balance
	reserved domain.Balance
}

// load reads an account row, locking it for the rest of the transaction.
// A missing row is an empty account.
func (c currencyStore) load(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (currencyAccount, error) {
	query := `SELECT free::text, reserved::text FROM currency_accounts
		WHERE currency_id = $1 AND account = $2`
	if !c.s.readOnly {
		query += ` FOR UPDATE`
	}
	var free, reserved string
	err := c.s.tx.QueryRow(ctx, query, int64(currency), accountArg(who)).Scan(&free, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return currencyAccount{}, nil
	}
	if err != nil {
		return currencyAccount{}, fmt.Errorf("postgres: get account %s: %w", who.Hex(), err)
	}
	var a currencyAccount
	if a.free, err = parseBalance(free); err != nil {
		return currencyAccount{}, err
	}
	if a.reserved, err = parseBalance(reserved); err != nil {
		return currencyAccount{}, err
	}
	return a, nil
}

func (c currencyStore) save(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, a currencyAccount) error {
	const query = `
		INSERT INTO currency_accounts (currency_id, account, free, reserved, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4::text::numeric, NOW())
		ON CONFLICT (currency_id, account) DO UPDATE SET
			free = EXCLUDED.free,
			reserved = EXCLUDED.reserved,
			updated_at = NOW()`
	_, err := c.s.tx.Exec(ctx, query, int64(currency), accountArg(who), a.free.String(), a.reserved.String())
	if err != nil {
		return fmt.Errorf("postgres: save account %s: %w", who.Hex(), err)
	}
	return nil
}

func (c currencyStore) Transfer(ctx context.Context, currency domain.CurrencyID, from, to domain.AccountID, amount domain.Balance) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	if amount.IsZero() || from == to {
		return nil
	}
	src, err := c.load(ctx, currency, from)
	if err != nil {
		return err
	}
	if src.free, err = src.free.CheckedSub(amount); err != nil {
		return domain.ErrInsufficientBalance
	}
	dst, err := c.load(ctx, currency, to)
	if err != nil {
		return err
	}
	if dst.free, err = dst.free.CheckedAdd(amount); err != nil {
		return err
	}
	if err := c.save(ctx, currency, from, src); err != nil {
		return err
	}
	return c.save(ctx, currency, to, dst)
}

func (c currencyStore) Reserve(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	a, err := c.load(ctx, currency, who)
	if err != nil {
		return err
	}
	if a.free, err = a.free.CheckedSub(amount); err != nil {
		return domain.ErrInsufficientBalance
	}
	if a.reserved, err = a.reserved.CheckedAdd(amount); err != nil {
		return err
	}
	return c.save(ctx, currency, who, a)
}

func (c currencyStore) Unreserve(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) (domain.Balance, error) {
	if err := c.s.writable(); err != nil {
		return domain.Balance{}, err
	}
	a, err := c.load(ctx, currency, who)
	if err != nil {
		return domain.Balance{}, err
	}
	actual := amount.Min(a.reserved)
	if actual.IsZero() {
		return actual, nil
	}
	if a.free, err = a.free.CheckedAdd(actual); err != nil {
		return domain.Balance{}, err
	}
	a.reserved = a.reserved.SaturatingSub(actual)
	return actual, c.save(ctx, currency, who, a)
}

func (c currencyStore) FreeBalance(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	a, err := c.load(ctx, currency, who)
	return a.free, err
}

func (c currencyStore) ReservedBalance(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	a, err := c.load(ctx, currency, who)
	return a.reserved, err
}

func (c currencyStore) TotalBalance(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	a, err := c.load(ctx, currency, who)
	return a.free.SaturatingAdd(a.reserved), err
}

func (c currencyStore) TotalIssuance(ctx context.Context, currency domain.CurrencyID) (domain.Balance, error) {
	var total string
	err := c.s.tx.QueryRow(ctx,
		`SELECT total::text FROM currency_issuance WHERE currency_id = $1`, int64(currency),
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Balance{}, nil
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("postgres: get issuance %d: %w", currency, err)
	}
	return parseBalance(total)
}

func (c currencyStore) Deposit(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error {
	if err := c.s.writable(); err != nil {
		return err
	}
	issuance, err := c.TotalIssuance(ctx, currency)
	if err != nil {
		return err
	}
	if issuance, err = issuance.CheckedAdd(amount); err != nil {
		return err
	}
	a, err := c.load(ctx, currency, who)
	if err != nil {
		return err
	}
	if a.free, err = a.free.CheckedAdd(amount); err != nil {
		return err
	}
	const query = `
		INSERT INTO currency_issuance (currency_id, total) VALUES ($1, $2::text::numeric)
		ON CONFLICT (currency_id) DO UPDATE SET total = EXCLUDED.total`
	if _, err := c.s.tx.Exec(ctx, query, int64(currency), issuance.String()); err != nil {
		return fmt.Errorf("postgres: save issuance %d: %w", currency, err)
	}
	return c.save(ctx, currency, who, a)
}
