package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingFilter narrows ListListings. Zero fields match everything.
type ListingFilter struct {
	Kind  ListingKind
	Owner *AccountID
	Limit int
}

// ListingStore persists listing records keyed by (owner, id) and auction bid
// records keyed by id. Getters return ErrNotFound when the record is absent.
type ListingStore interface {
	Order(ctx context.Context, owner AccountID, id GlobalID) (Order, error)
	PutOrder(ctx context.Context, owner AccountID, id GlobalID, o Order) error
	DeleteOrder(ctx context.Context, owner AccountID, id GlobalID) error

	Offer(ctx context.Context, owner AccountID, id GlobalID) (Offer, error)
	PutOffer(ctx context.Context, owner AccountID, id GlobalID, o Offer) error
	DeleteOffer(ctx context.Context, owner AccountID, id GlobalID) error

	BritishAuction(ctx context.Context, owner AccountID, id GlobalID) (BritishAuction, error)
	PutBritishAuction(ctx context.Context, owner AccountID, id GlobalID, a BritishAuction) error
	DeleteBritishAuction(ctx context.Context, owner AccountID, id GlobalID) error
	BritishAuctionBid(ctx context.Context, id GlobalID) (BritishAuctionBid, error)
	PutBritishAuctionBid(ctx context.Context, id GlobalID, b BritishAuctionBid) error
	DeleteBritishAuctionBid(ctx context.Context, id GlobalID) error

	DutchAuction(ctx context.Context, owner AccountID, id GlobalID) (DutchAuction, error)
	PutDutchAuction(ctx context.Context, owner AccountID, id GlobalID, a DutchAuction) error
	DeleteDutchAuction(ctx context.Context, owner AccountID, id GlobalID) error
	DutchAuctionBid(ctx context.Context, id GlobalID) (DutchAuctionBid, error)
	PutDutchAuctionBid(ctx context.Context, id GlobalID, b DutchAuctionBid) error
	DeleteDutchAuctionBid(ctx context.Context, id GlobalID) error

	ListListings(ctx context.Context, f ListingFilter) ([]ListingRef, error)
}

// Session is the view of every collaborator inside one transaction.
type Session interface {
	Currency() CurrencyLedger
	NFT() NFTLedger
	Config() ConfigProvider
	Listings() ListingStore
}

// Backend runs serialized, all-or-nothing units of work. Update commits when
// fn returns nil and discards every write otherwise. View never writes.
type Backend interface {
	Update(ctx context.Context, fn func(s Session) error) error
	View(ctx context.Context, fn func(s Session) error) error
}

// EventStore persists an append-only log of committed events.
type EventStore interface {
	Append(ctx context.Context, ev Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
	ListBefore(ctx context.Context, before time.Time) ([]Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
