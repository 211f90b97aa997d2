// Package market implements the settlement core of the marketplace: fixed
// price orders and offers, British and Dutch auctions, escrow and the swap
// that pays platform fee, royalty and commission.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// TreasuryPalletID seeds the default treasury account.
const TreasuryPalletID = "nftmart/trsy"

// DefaultTreasury derives the treasury account from TreasuryPalletID.
func DefaultTreasury() domain.AccountID {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("modl" + TreasuryPalletID)))
}

// Engine serves every market operation. Each call runs in one backend
// transaction and emits its events only after the transaction commits.
type Engine struct {
	backend  domain.Backend
	clock    domain.Clock
	sink     domain.EventSink
	treasury domain.AccountID
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an Engine. A zero treasury selects DefaultTreasury.
func NewEngine(backend domain.Backend, clock domain.Clock, sink domain.EventSink, treasury domain.AccountID, logger *slog.Logger) *Engine {
	if treasury == (domain.AccountID{}) {
		treasury = DefaultTreasury()
	}
	return &Engine{
		backend:  backend,
		clock:    clock,
		sink:     sink,
		treasury: treasury,
		logger:   logger,
		now:      time.Now,
	}
}

// Treasury returns the account collecting platform fees.
func (e *Engine) Treasury() domain.AccountID { return e.treasury }

// txn is the state of one operation inside a backend transaction.
type txn struct {
	ctx      context.Context
	s        domain.Session
	now      domain.BlockNumber
	treasury domain.AccountID
	escrow   Escrow
	events   []domain.Event
}

func (t *txn) emit(ev domain.Event) {
	t.events = append(t.events, ev)
}

// update runs fn in a write transaction and publishes the buffered events
// once it commits.
func (e *Engine) update(ctx context.Context, op string, fn func(t *txn) error) error {
	now, err := e.clock.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("market: %s: current block: %w", op, err)
	}

	var events []domain.Event
	err = e.backend.Update(ctx, func(s domain.Session) error {
		t := &txn{
			ctx:      ctx,
			s:        s,
			now:      now,
			treasury: e.treasury,
			escrow:   NewEscrow(s.Currency(), s.NFT()),
		}
		if err := fn(t); err != nil {
			return err
		}
		events = t.events
		return nil
	})
	if err != nil {
		e.logger.DebugContext(ctx, "market: operation rejected",
			slog.String("op", op),
			slog.Uint64("block", uint64(now)),
			slog.String("error", err.Error()),
		)
		return err
	}

	ts := e.now().UTC()
	for _, ev := range events {
		ev.ID = uuid.NewString()
		ev.Block = now
		ev.CreatedAt = ts
		e.logger.InfoContext(ctx, "market: "+string(ev.Kind),
			slog.String("who", ev.Who.Hex()),
			slog.Uint64("listing_id", uint64(ev.ListingID)),
			slog.Uint64("block", uint64(now)),
		)
		e.sink.Emit(ctx, ev)
	}
	return nil
}

// logRedeem records who triggered a successful redeem, which need not be
// either party.
func (e *Engine) logRedeem(ctx context.Context, op string, caller, owner domain.AccountID, id domain.GlobalID) {
	e.logger.InfoContext(ctx, "market: redeem triggered",
		slog.String("op", op),
		slog.String("caller", caller.Hex()),
		slog.String("owner", owner.Hex()),
		slog.Uint64("listing_id", uint64(id)),
	)
}

// view runs fn in a read-only transaction.
func (e *Engine) view(ctx context.Context, fn func(s domain.Session) error) error {
	return e.backend.View(ctx, fn)
}

// checkItems validates a submitted bundle's shape.
func checkItems(items []domain.OrderItem) error {
	if len(items) == 0 {
		return domain.ErrEmptyTokenList
	}
	if len(items) > domain.MaxTokensPerListing {
		return domain.ErrTooManyTokens
	}
	for _, item := range items {
		if item.Quantity == 0 {
			return fmt.Errorf("%w: class %d token %d", domain.ErrInvalidQuantity, item.ClassID, item.TokenID)
		}
	}
	return nil
}

func (t *txn) checkCommissionRate(rate domain.Rate) error {
	maxRate, err := t.s.Config().MaxCommissionRewardRate(t.ctx)
	if err != nil {
		return err
	}
	if rate > maxRate {
		return domain.ErrInvalidCommissionRate
	}
	return nil
}

// reserveListingDeposit checks the deposit against the configured minimum
// and reserves it.
func (t *txn) reserveListingDeposit(who domain.AccountID, deposit domain.Balance) error {
	minDeposit, err := t.s.Config().MinOrderDeposit(t.ctx)
	if err != nil {
		return err
	}
	if deposit.LessThan(minDeposit) {
		return domain.ErrSubmitWithInvalidDeposit
	}
	return t.escrow.ReserveDeposit(t.ctx, who, deposit)
}

// allocate bumps the category count and hands out the next global id.
func (t *txn) allocate(category domain.GlobalID) (domain.GlobalID, error) {
	if err := t.s.Config().IncCountInCategory(t.ctx, category); err != nil {
		return 0, err
	}
	return t.s.Config().GetThenIncID(t.ctx)
}

// resolveCommission decides whether agent earns a commission. The agent
// qualifies when its total native balance meets the configured minimum and
// the listing pays a nonzero rate.
func (t *txn) resolveCommission(agent *domain.AccountID, rate domain.Rate) (*domain.Commission, error) {
	if agent == nil {
		return nil, nil
	}
	minDeposit, err := t.s.Config().MinCommissionAgentDeposit(t.ctx)
	if err != nil {
		return nil, err
	}
	total, err := t.s.Currency().TotalBalance(t.ctx, domain.NativeCurrencyID, *agent)
	if err != nil {
		return nil, err
	}
	return &domain.Commission{
		Eligible: !total.LessThan(minDeposit) && !rate.IsZero(),
		Agent:    *agent,
		Rate:     rate,
	}, nil
}

// settle resolves royalty and commission and runs the swap.
func (t *txn) settle(payer, payee domain.AccountID, currency domain.CurrencyID, price domain.Balance,
	items []domain.OrderItem, agent *domain.AccountID, commissionRate domain.Rate) (*domain.Commission, error) {
	commission, err := t.resolveCommission(agent, commissionRate)
	if err != nil {
		return nil, err
	}
	royalty, err := ResolveRoyalty(t.ctx, t.s.NFT(), items)
	if err != nil {
		return nil, err
	}
	// Token royalties can change while a listing is open.
	if royalty.Charged > 1 {
		return nil, fmt.Errorf("%w: %d tokens charge royalty", domain.ErrTooManyTokenChargedRoyalty, royalty.Charged)
	}
	feeRate, err := t.s.Config().PlatformFeeRate(t.ctx)
	if err != nil {
		return nil, err
	}
	_, err = Swap(t.ctx, t.s.Currency(), t.s.NFT(), SwapParams{
		Payer:           payer,
		Payee:           payee,
		CurrencyID:      currency,
		Price:           price,
		Items:           items,
		Treasury:        t.treasury,
		PlatformFeeRate: feeRate,
		Royalty:         royalty,
		Commission:      commission,
	})
	if err != nil {
		return nil, err
	}
	return commission, nil
}

// notFound translates a store miss into the listing-specific error.
func notFound(err, sentinel error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return sentinel
	}
	return err
}

func accountPtr(a domain.AccountID) *domain.AccountID { return &a }

func balancePtr(b domain.Balance) *domain.Balance { return &b }
