package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type listingStore struct{ t *tx }

var _ domain.ListingStore = listingStore{}

func cloneItems(items []domain.OrderItem) []domain.OrderItem {
	if items == nil {
		return nil
	}
	return append([]domain.OrderItem(nil), items...)
}

func cloneBid(b domain.AuctionBid) domain.AuctionBid {
	if b.LastBidAccount != nil {
		a := *b.LastBidAccount
		b.LastBidAccount = &a
	}
	if b.CommissionAgent != nil {
		a := *b.CommissionAgent
		b.CommissionAgent = &a
	}
	if b.CommissionData != nil {
		b.CommissionData = append([]byte(nil), b.CommissionData...)
	}
	return b
}

func notFound(kind string, owner domain.AccountID, id domain.GlobalID) error {
	return fmt.Errorf("memory: %s %s/%d: %w", kind, owner.Hex(), id, domain.ErrNotFound)
}

func (l listingStore) Order(_ context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Order, error) {
	o, ok := l.t.st.orders[listingKey{owner, id}]
	if !ok {
		return domain.Order{}, notFound("order", owner, id)
	}
	o.Items = cloneItems(o.Items)
	return o, nil
}

func (l listingStore) PutOrder(_ context.Context, owner domain.AccountID, id domain.GlobalID, o domain.Order) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	o.Items = cloneItems(o.Items)
	put(l.t, l.t.st.orders, listingKey{owner, id}, o)
	return nil
}

func (l listingStore) DeleteOrder(_ context.Context, owner domain.AccountID, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.orders, listingKey{owner, id})
	return nil
}

func (l listingStore) Offer(_ context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Offer, error) {
	o, ok := l.t.st.offers[listingKey{owner, id}]
	if !ok {
		return domain.Offer{}, notFound("offer", owner, id)
	}
	o.Items = cloneItems(o.Items)
	return o, nil
}

func (l listingStore) PutOffer(_ context.Context, owner domain.AccountID, id domain.GlobalID, o domain.Offer) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	o.Items = cloneItems(o.Items)
	put(l.t, l.t.st.offers, listingKey{owner, id}, o)
	return nil
}

func (l listingStore) DeleteOffer(_ context.Context, owner domain.AccountID, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.offers, listingKey{owner, id})
	return nil
}

func (l listingStore) BritishAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID) (domain.BritishAuction, error) {
	a, ok := l.t.st.british[listingKey{owner, id}]
	if !ok {
		return domain.BritishAuction{}, notFound("british auction", owner, id)
	}
	a.Items = cloneItems(a.Items)
	return a, nil
}

func (l listingStore) PutBritishAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID, a domain.BritishAuction) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	a.Items = cloneItems(a.Items)
	put(l.t, l.t.st.british, listingKey{owner, id}, a)
	return nil
}

func (l listingStore) DeleteBritishAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.british, listingKey{owner, id})
	return nil
}

func (l listingStore) BritishAuctionBid(_ context.Context, id domain.GlobalID) (domain.BritishAuctionBid, error) {
	b, ok := l.t.st.britishBids[id]
	if !ok {
		return domain.BritishAuctionBid{}, fmt.Errorf("memory: british auction bid %d: %w", id, domain.ErrNotFound)
	}
	return domain.BritishAuctionBid(cloneBid(domain.AuctionBid(b))), nil
}

func (l listingStore) PutBritishAuctionBid(_ context.Context, id domain.GlobalID, b domain.BritishAuctionBid) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	put(l.t, l.t.st.britishBids, id, domain.BritishAuctionBid(cloneBid(domain.AuctionBid(b))))
	return nil
}

func (l listingStore) DeleteBritishAuctionBid(_ context.Context, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.britishBids, id)
	return nil
}

func (l listingStore) DutchAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID) (domain.DutchAuction, error) {
	a, ok := l.t.st.dutch[listingKey{owner, id}]
	if !ok {
		return domain.DutchAuction{}, notFound("dutch auction", owner, id)
	}
	a.Items = cloneItems(a.Items)
	return a, nil
}

func (l listingStore) PutDutchAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID, a domain.DutchAuction) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	a.Items = cloneItems(a.Items)
	put(l.t, l.t.st.dutch, listingKey{owner, id}, a)
	return nil
}

func (l listingStore) DeleteDutchAuction(_ context.Context, owner domain.AccountID, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.dutch, listingKey{owner, id})
	return nil
}

func (l listingStore) DutchAuctionBid(_ context.Context, id domain.GlobalID) (domain.DutchAuctionBid, error) {
	b, ok := l.t.st.dutchBids[id]
	if !ok {
		return domain.DutchAuctionBid{}, fmt.Errorf("memory: dutch auction bid %d: %w", id, domain.ErrNotFound)
	}
	return domain.DutchAuctionBid(cloneBid(domain.AuctionBid(b))), nil
}

func (l listingStore) PutDutchAuctionBid(_ context.Context, id domain.GlobalID, b domain.DutchAuctionBid) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	put(l.t, l.t.st.dutchBids, id, domain.DutchAuctionBid(cloneBid(domain.AuctionBid(b))))
	return nil
}

func (l listingStore) DeleteDutchAuctionBid(_ context.Context, id domain.GlobalID) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	remove(l.t, l.t.st.dutchBids, id)
	return nil
}

// ListListings returns references ordered by id.
func (l listingStore) ListListings(_ context.Context, f domain.ListingFilter) ([]domain.ListingRef, error) {
	var refs []domain.ListingRef
	collect := func(kind domain.ListingKind, keys []listingKey) {
		if f.Kind != "" && f.Kind != kind {
			return
		}
		for _, k := range keys {
			if f.Owner != nil && *f.Owner != k.owner {
				continue
			}
			refs = append(refs, domain.ListingRef{Kind: kind, Owner: k.owner, ID: k.id})
		}
	}
	collect(domain.KindOrder, keysOf(l.t.st.orders))
	collect(domain.KindOffer, keysOf(l.t.st.offers))
	collect(domain.KindBritishAuction, keysOf(l.t.st.british))
	collect(domain.KindDutchAuction, keysOf(l.t.st.dutch))

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	if f.Limit > 0 && len(refs) > f.Limit {
		refs = refs[:f.Limit]
	}
	return refs, nil
}

func keysOf[V any](m map[listingKey]V) []listingKey {
	keys := make([]listingKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
