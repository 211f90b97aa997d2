package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// marketLockKey is the advisory lock every write transaction takes so
// market operations apply one at a time.
const marketLockKey int64 = 0x6e66746d617274

var errReadOnly = errors.New("postgres: write in read-only transaction")

// Backend implements domain.Backend on PostgreSQL. Each Update is one
// database transaction serialized by a transaction-scoped advisory lock.
type Backend struct {
	pool *pgxpool.Pool
}

var _ domain.Backend = (*Backend)(nil)

// NewBackend creates a Backend backed by the given connection pool.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Update runs fn in a read-write transaction and commits when fn succeeds.
func (b *Backend) Update(ctx context.Context, fn func(domain.Session) error) error {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, marketLockKey); err != nil {
		return fmt.Errorf("postgres: market lock: %w", err)
	}
	if err := fn(&session{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction.
func (b *Backend) View(ctx context.Context, fn func(domain.Session) error) error {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("postgres: begin read-only: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return fn(&session{tx: tx, readOnly: true})
}

type session struct {
	tx       pgx.Tx
	readOnly bool
}

func (s *session) Currency() domain.CurrencyLedger { return currencyStore{s} }
func (s *session) NFT() domain.NFTLedger           { return nftStore{s} }
func (s *session) Config() domain.ConfigProvider   { return configStore{s} }
func (s *session) Listings() domain.ListingStore   { return listingStore{s} }

func (s *session) writable() error {
	if s.readOnly {
		return errReadOnly
	}
	return nil
}

// NUMERIC columns travel as decimal text so 128-bit balances and 64-bit
// ids survive without a float or int64 detour.

func numArg(v uint64) string { return strconv.FormatUint(v, 10) }

func parseU64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("postgres: parse numeric %q: %w", s, err)
	}
	return v, nil
}

func parseBalance(s string) (domain.Balance, error) {
	b, err := domain.ParseBalance(s)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("postgres: %w", err)
	}
	return b, nil
}

func accountArg(a domain.AccountID) string { return a.Hex() }

func hexAddress(s string) domain.AccountID { return common.HexToAddress(s) }
