package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// listingStore implements domain.ListingStore. Listing records live in one
// JSONB table keyed by (kind, owner, id); auction bids in another keyed by
// (kind, id).
type listingStore struct{ s *session }

var _ domain.ListingStore = listingStore{}

func getListing[T any](ctx context.Context, s *session, kind domain.ListingKind, owner domain.AccountID, id domain.GlobalID) (T, error) {
	var (
		out T
		raw []byte
	)
	err := s.tx.QueryRow(ctx,
		`SELECT record FROM listings WHERE kind = $1 AND owner = $2 AND id = $3::text::numeric`,
		string(kind), accountArg(owner), numArg(uint64(id)),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, fmt.Errorf("postgres: %s %s/%d: %w", kind, owner.Hex(), id, domain.ErrNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("postgres: get %s %s/%d: %w", kind, owner.Hex(), id, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("postgres: unmarshal %s %d: %w", kind, id, err)
	}
	return out, nil
}

func putListing(ctx context.Context, s *session, kind domain.ListingKind, owner domain.AccountID, id domain.GlobalID, record any) error {
	if err := s.writable(); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("postgres: marshal %s %d: %w", kind, id, err)
	}
	const query = `
		INSERT INTO listings (kind, owner, id, record, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4, NOW())
		ON CONFLICT (kind, owner, id) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`
	if _, err := s.tx.Exec(ctx, query, string(kind), accountArg(owner), numArg(uint64(id)), raw); err != nil {
		return fmt.Errorf("postgres: save %s %d: %w", kind, id, err)
	}
	return nil
}

func deleteListing(ctx context.Context, s *session, kind domain.ListingKind, owner domain.AccountID, id domain.GlobalID) error {
	if err := s.writable(); err != nil {
		return err
	}
	_, err := s.tx.Exec(ctx,
		`DELETE FROM listings WHERE kind = $1 AND owner = $2 AND id = $3::text::numeric`,
		string(kind), accountArg(owner), numArg(uint64(id)))
	if err != nil {
		return fmt.Errorf("postgres: delete %s %d: %w", kind, id, err)
	}
	return nil
}

func getBid(ctx context.Context, s *session, kind domain.ListingKind, id domain.GlobalID) (domain.AuctionBid, error) {
	var (
		bid domain.AuctionBid
		raw []byte
	)
	err := s.tx.QueryRow(ctx,
		`SELECT record FROM auction_bids WHERE kind = $1 AND id = $2::text::numeric`,
		string(kind), numArg(uint64(id)),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return bid, fmt.Errorf("postgres: %s bid %d: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return bid, fmt.Errorf("postgres: get %s bid %d: %w", kind, id, err)
	}
	if err := json.Unmarshal(raw, &bid); err != nil {
		return bid, fmt.Errorf("postgres: unmarshal %s bid %d: %w", kind, id, err)
	}
	return bid, nil
}

func putBid(ctx context.Context, s *session, kind domain.ListingKind, id domain.GlobalID, bid domain.AuctionBid) error {
	if err := s.writable(); err != nil {
		return err
	}
	raw, err := json.Marshal(bid)
	if err != nil {
		return fmt.Errorf("postgres: marshal %s bid %d: %w", kind, id, err)
	}
	const query = `
		INSERT INTO auction_bids (kind, id, record, updated_at)
		VALUES ($1, $2::text::numeric, $3, NOW())
		ON CONFLICT (kind, id) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`
	if _, err := s.tx.Exec(ctx, query, string(kind), numArg(uint64(id)), raw); err != nil {
		return fmt.Errorf("postgres: save %s bid %d: %w", kind, id, err)
	}
	return nil
}

func deleteBid(ctx context.Context, s *session, kind domain.ListingKind, id domain.GlobalID) error {
	if err := s.writable(); err != nil {
		return err
	}
	_, err := s.tx.Exec(ctx,
		`DELETE FROM auction_bids WHERE kind = $1 AND id = $2::text::numeric`, string(kind), numArg(uint64(id)))
	if err != nil {
		return fmt.Errorf("postgres: delete %s bid %d: %w", kind, id, err)
	}
	return nil
}

func (l listingStore) Order(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Order, error) {
	return getListing[domain.Order](ctx, l.s, domain.KindOrder, owner, id)
}

func (l listingStore) PutOrder(ctx context.Context, owner domain.AccountID, id domain.GlobalID, o domain.Order) error {
	return putListing(ctx, l.s, domain.KindOrder, owner, id, o)
}

func (l listingStore) DeleteOrder(ctx context.Context, owner domain.AccountID, id domain.GlobalID) error {
	return deleteListing(ctx, l.s, domain.KindOrder, owner, id)
}

func (l listingStore) Offer(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Offer, error) {
	return getListing[domain.Offer](ctx, l.s, domain.KindOffer, owner, id)
}

func (l listingStore) PutOffer(ctx context.Context, owner domain.AccountID, id domain.GlobalID, o domain.Offer) error {
	return putListing(ctx, l.s, domain.KindOffer, owner, id, o)
}

func (l listingStore) DeleteOffer(ctx context.Context, owner domain.AccountID, id domain.GlobalID) error {
	return deleteListing(ctx, l.s, domain.KindOffer, owner, id)
}

func (l listingStore) BritishAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.BritishAuction, error) {
	return getListing[domain.BritishAuction](ctx, l.s, domain.KindBritishAuction, owner, id)
}

func (l listingStore) PutBritishAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID, a domain.BritishAuction) error {
	return putListing(ctx, l.s, domain.KindBritishAuction, owner, id, a)
}

func (l listingStore) DeleteBritishAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) error {
	return deleteListing(ctx, l.s, domain.KindBritishAuction, owner, id)
}

func (l listingStore) BritishAuctionBid(ctx context.Context, id domain.GlobalID) (domain.BritishAuctionBid, error) {
	b, err := getBid(ctx, l.s, domain.KindBritishAuction, id)
	return domain.BritishAuctionBid(b), err
}

func (l listingStore) PutBritishAuctionBid(ctx context.Context, id domain.GlobalID, b domain.BritishAuctionBid) error {
	return putBid(ctx, l.s, domain.KindBritishAuction, id, domain.AuctionBid(b))
}

func (l listingStore) DeleteBritishAuctionBid(ctx context.Context, id domain.GlobalID) error {
	return deleteBid(ctx, l.s, domain.KindBritishAuction, id)
}

func (l listingStore) DutchAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.DutchAuction, error) {
	return getListing[domain.DutchAuction](ctx, l.s, domain.KindDutchAuction, owner, id)
}

func (l listingStore) PutDutchAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID, a domain.DutchAuction) error {
	return putListing(ctx, l.s, domain.KindDutchAuction, owner, id, a)
}

func (l listingStore) DeleteDutchAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) error {
	return deleteListing(ctx, l.s, domain.KindDutchAuction, owner, id)
}

func (l listingStore) DutchAuctionBid(ctx context.Context, id domain.GlobalID) (domain.DutchAuctionBid, error) {
	b, err := getBid(ctx, l.s, domain.KindDutchAuction, id)
	return domain.DutchAuctionBid(b), err
}

func (l listingStore) PutDutchAuctionBid(ctx context.Context, id domain.GlobalID, b domain.DutchAuctionBid) error {
	return putBid(ctx, l.s, domain.KindDutchAuction, id, domain.AuctionBid(b))
}

func (l listingStore) DeleteDutchAuctionBid(ctx context.Context, id domain.GlobalID) error {
	return deleteBid(ctx, l.s, domain.KindDutchAuction, id)
}

func (l listingStore) ListListings(ctx context.Context, f domain.ListingFilter) ([]domain.ListingRef, error) {
	query := `SELECT kind, owner, id::text FROM listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, string(f.Kind))
		argIdx++
	}
	if f.Owner != nil {
		query += fmt.Sprintf(" AND owner = $%d", argIdx)
		args = append(args, accountArg(*f.Owner))
		argIdx++
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	rows, err := l.s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	var refs []domain.ListingRef
	for rows.Next() {
		var kind, owner, id string
		if err := rows.Scan(&kind, &owner, &id); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		n, err := parseU64(id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, domain.ListingRef{
			Kind:  domain.ListingKind(kind),
			Owner: hexAddress(owner),
			ID:    domain.GlobalID(n),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return refs, nil
}
