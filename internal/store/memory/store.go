// Package memory is an in-process domain.Backend. Every Update holds one
// global lock and records an undo journal; a failed Update replays the
// journal backwards so no write survives.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

type currencyKey struct {
	currency domain.CurrencyID
	who      domain.AccountID
}

type account struct {
	free     domain.Balance
	reserved domain.Balance
}

type tokenKey struct {
	class domain.ClassID
	token domain.TokenID
}

type holdingKey struct {
	who   domain.AccountID
	class domain.ClassID
	token domain.TokenID
}

type listingKey struct {
	owner domain.AccountID
	id    domain.GlobalID
}

type state struct {
	accounts map[currencyKey]account
	issuance map[domain.CurrencyID]domain.Balance

	classes     map[domain.ClassID]domain.ClassInfo
	nextClassID domain.ClassID
	tokens      map[tokenKey]domain.TokenInfo
	holdings    map[holdingKey]domain.TokenHolding

	params     *domain.MarketParams
	nextGID    domain.GlobalID
	categories map[domain.GlobalID]domain.Category
	whitelist  map[domain.AccountID]bool

	orders      map[listingKey]domain.Order
	offers      map[listingKey]domain.Offer
	british     map[listingKey]domain.BritishAuction
	britishBids map[domain.GlobalID]domain.BritishAuctionBid
	dutch       map[listingKey]domain.DutchAuction
	dutchBids   map[domain.GlobalID]domain.DutchAuctionBid
}

// Store is the in-memory backend.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ domain.Backend = (*Store)(nil)

// New returns an empty Store. Params stay unset until SetParams runs.
func New() *Store {
	return &Store{st: &state{
		accounts:    make(map[currencyKey]account),
		issuance:    make(map[domain.CurrencyID]domain.Balance),
		classes:     make(map[domain.ClassID]domain.ClassInfo),
		tokens:      make(map[tokenKey]domain.TokenInfo),
		holdings:    make(map[holdingKey]domain.TokenHolding),
		categories:  make(map[domain.GlobalID]domain.Category),
		whitelist:   make(map[domain.AccountID]bool),
		orders:      make(map[listingKey]domain.Order),
		offers:      make(map[listingKey]domain.Offer),
		british:     make(map[listingKey]domain.BritishAuction),
		britishBids: make(map[domain.GlobalID]domain.BritishAuctionBid),
		dutch:       make(map[listingKey]domain.DutchAuction),
		dutchBids:   make(map[domain.GlobalID]domain.DutchAuctionBid),
	}}
}

// Update runs fn under the write lock and rolls back every write if fn
// fails or panics.
func (s *Store) Update(ctx context.Context, fn func(domain.Session) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: s.st}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()
	if err = fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// View runs fn under the read lock. Writes fail with an error.
func (s *Store) View(ctx context.Context, fn func(domain.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.st, readOnly: true})
}

// tx is one unit of work over the shared state.
type tx struct {
	st       *state
	readOnly bool
	undo     []func()
}

func (t *tx) Currency() domain.CurrencyLedger { return currencyLedger{t} }
func (t *tx) NFT() domain.NFTLedger           { return nftLedger{t} }
func (t *tx) Config() domain.ConfigProvider   { return configProvider{t} }
func (t *tx) Listings() domain.ListingStore   { return listingStore{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// put sets m[k] = v and journals the previous entry.
func put[K comparable, V any](t *tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// remove deletes m[k] and journals the previous entry.
func remove[K comparable, V any](t *tx, m map[K]V, k K) {
	old, existed := m[k]
	if !existed {
		return
	}
	t.undo = append(t.undo, func() { m[k] = old })
	delete(m, k)
}

// assign sets *p = v and journals the previous value.
func assign[V any](t *tx, p *V, v V) {
	old := *p
	t.undo = append(t.undo, func() { *p = old })
	*p = v
}
