package memory

import (
	"context"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type currencyLedger struct{ t *tx }

var _ domain.CurrencyLedger = currencyLedger{}

func (c currencyLedger) get(currency domain.CurrencyID, who domain.AccountID) account {
	return c.t.st.accounts[currencyKey{currency, who}]
}

func (c currencyLedger) set(currency domain.CurrencyID, who domain.AccountID, a account) {
	put(c.t, c.t.st.accounts, currencyKey{currency, who}, a)
}

func (c currencyLedger) Transfer(_ context.Context, currency domain.CurrencyID, from, to domain.AccountID, amount domain.Balance) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	if amount.IsZero() || from == to {
		return nil
	}
	src := c.get(currency, from)
	free, err := src.free.CheckedSub(amount)
	if err != nil {
		return domain.ErrInsufficientBalance
	}
	dst := c.get(currency, to)
	credited, err := dst.free.CheckedAdd(amount)
	if err != nil {
		return err
	}
	src.free = free
	dst.free = credited
	c.set(currency, from, src)
	c.set(currency, to, dst)
	return nil
}

func (c currencyLedger) Reserve(_ context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	a := c.get(currency, who)
	free, err := a.free.CheckedSub(amount)
	if err != nil {
		return domain.ErrInsufficientBalance
	}
	reserved, err := a.reserved.CheckedAdd(amount)
	if err != nil {
		return err
	}
	a.free, a.reserved = free, reserved
	c.set(currency, who, a)
	return nil
}

func (c currencyLedger) Unreserve(_ context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) (domain.Balance, error) {
	if err := c.t.writable(); err != nil {
		return domain.Balance{}, err
	}
	a := c.get(currency, who)
	actual := amount.Min(a.reserved)
	if actual.IsZero() {
		return actual, nil
	}
	free, err := a.free.CheckedAdd(actual)
	if err != nil {
		return domain.Balance{}, err
	}
	a.free = free
	a.reserved = a.reserved.SaturatingSub(actual)
	c.set(currency, who, a)
	return actual, nil
}

func (c currencyLedger) FreeBalance(_ context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	return c.get(currency, who).free, nil
}

func (c currencyLedger) ReservedBalance(_ context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	return c.get(currency, who).reserved, nil
}

func (c currencyLedger) TotalBalance(_ context.Context, currency domain.CurrencyID, who domain.AccountID) (domain.Balance, error) {
	a := c.get(currency, who)
	return a.free.SaturatingAdd(a.reserved), nil
}

func (c currencyLedger) TotalIssuance(_ context.Context, currency domain.CurrencyID) (domain.Balance, error) {
	return c.t.st.issuance[currency], nil
}

func (c currencyLedger) Deposit(_ context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error {
	if err := c.t.writable(); err != nil {
		return err
	}
	issuance, err := c.t.st.issuance[currency].CheckedAdd(amount)
	if err != nil {
		return err
	}
	a := c.get(currency, who)
	if a.free, err = a.free.CheckedAdd(amount); err != nil {
		return err
	}
	put(c.t, c.t.st.issuance, currency, issuance)
	c.set(currency, who, a)
	return nil
}
