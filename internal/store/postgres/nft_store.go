package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// nftStore implements domain.NFTLedger over nft_classes, nft_tokens and
// nft_holdings.
type nftStore struct{ s *session }

var _ domain.NFTLedger = nftStore{}

func (n nftStore) holding(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID) (domain.TokenHolding, error) {
	const query = `SELECT quantity::text, reserved::text FROM nft_holdings
		WHERE account = $1 AND class_id = $2 AND token_id = $3::text::numeric`
	var qty, reserved string
	err := n.s.tx.QueryRow(ctx, query, accountArg(who), int64(class), numArg(uint64(token))).Scan(&qty, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenHolding{}, nil
	}
	if err != nil {
		return domain.TokenHolding{}, fmt.Errorf("postgres: get holding %s %d/%d: %w", who.Hex(), class, token, err)
	}
	q, err := parseU64(qty)
	if err != nil {
		return domain.TokenHolding{}, err
	}
	r, err := parseU64(reserved)
	if err != nil {
		return domain.TokenHolding{}, err
	}
	return domain.TokenHolding{Quantity: domain.TokenID(q), Reserved: domain.TokenID(r)}, nil
}

func (n nftStore) setHolding(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, h domain.TokenHolding) error {
	if h.Quantity == 0 && h.Reserved == 0 {
		_, err := n.s.tx.Exec(ctx,
			`DELETE FROM nft_holdings WHERE account = $1 AND class_id = $2 AND token_id = $3::text::numeric`,
			accountArg(who), int64(class), numArg(uint64(token)))
		if err != nil {
			return fmt.Errorf("postgres: delete holding %s %d/%d: %w", who.Hex(), class, token, err)
		}
		return nil
	}
	const query = `
		INSERT INTO nft_holdings (account, class_id, token_id, quantity, reserved)
		VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric)
		ON CONFLICT (account, class_id, token_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved = EXCLUDED.reserved`
	_, err := n.s.tx.Exec(ctx, query, accountArg(who), int64(class), numArg(uint64(token)),
		numArg(uint64(h.Quantity)), numArg(uint64(h.Reserved)))
	if err != nil {
		return fmt.Errorf("postgres: save holding %s %d/%d: %w", who.Hex(), class, token, err)
	}
	return nil
}

func (n nftStore) Transfer(ctx context.Context, from, to domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.s.writable(); err != nil {
		return err
	}
	if quantity == 0 || from == to {
		return nil
	}
	src, err := n.holding(ctx, from, class, token)
	if err != nil {
		return err
	}
	if src.Free() < quantity {
		return fmt.Errorf("%w: class %d token %d", domain.ErrInsufficientTokenBalance, class, token)
	}
	dst, err := n.holding(ctx, to, class, token)
	if err != nil {
		return err
	}
	if dst.Quantity > math.MaxUint64-quantity {
		return domain.ErrArithmeticOverflow
	}
	src.Quantity -= quantity
	dst.Quantity += quantity
	if err := n.setHolding(ctx, from, class, token, src); err != nil {
		return err
	}
	return n.setHolding(ctx, to, class, token, dst)
}

func (n nftStore) ReserveTokens(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.s.writable(); err != nil {
		return err
	}
	h, err := n.holding(ctx, who, class, token)
	if err != nil {
		return err
	}
	if h.Free() < quantity {
		return fmt.Errorf("%w: class %d token %d", domain.ErrInsufficientTokenBalance, class, token)
	}
	h.Reserved += quantity
	return n.setHolding(ctx, who, class, token, h)
}

func (n nftStore) UnreserveTokens(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, quantity domain.TokenID) error {
	if err := n.s.writable(); err != nil {
		return err
	}
	h, err := n.holding(ctx, who, class, token)
	if err != nil {
		return err
	}
	if h.Reserved < quantity {
		return fmt.Errorf("%w: class %d token %d reserved %d", domain.ErrInsufficientTokenBalance, class, token, h.Reserved)
	}
	h.Reserved -= quantity
	return n.setHolding(ctx, who, class, token, h)
}

func (n nftStore) AccountToken(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID) (domain.TokenHolding, error) {
	return n.holding(ctx, who, class, token)
}

func (n nftStore) TokenChargedRoyalty(ctx context.Context, class domain.ClassID, token domain.TokenID) (domain.AccountID, domain.Rate, error) {
	info, err := n.Token(ctx, class, token)
	if err != nil {
		return domain.AccountID{}, 0, err
	}
	return info.RoyaltyBeneficiary, info.RoyaltyRate, nil
}

func (n nftStore) PeekNextClassID(ctx context.Context) (domain.ClassID, error) {
	v, err := peekCounter(ctx, n.s.tx, counterNextClassID)
	return domain.ClassID(v), err
}

func (n nftStore) Class(ctx context.Context, class domain.ClassID) (domain.ClassInfo, error) {
	const query = `SELECT id, owner, metadata, royalty_rate, next_token_id::text FROM nft_classes WHERE id = $1`
	var (
		info             domain.ClassInfo
		id               int64
		owner, nextToken string
		royalty          int32
	)
	err := n.s.tx.QueryRow(ctx, query, int64(class)).Scan(&id, &owner, &info.Metadata, &royalty, &nextToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ClassInfo{}, fmt.Errorf("%w: class %d", domain.ErrClassNotFound, class)
	}
	if err != nil {
		return domain.ClassInfo{}, fmt.Errorf("postgres: get class %d: %w", class, err)
	}
	next, err := parseU64(nextToken)
	if err != nil {
		return domain.ClassInfo{}, err
	}
	info.ID = domain.ClassID(id)
	info.Owner = hexAddress(owner)
	info.RoyaltyRate = domain.Rate(royalty)
	info.NextTokenID = domain.TokenID(next)
	return info, nil
}

func (n nftStore) Token(ctx context.Context, class domain.ClassID, token domain.TokenID) (domain.TokenInfo, error) {
	const query = `
		SELECT metadata, creator, royalty_rate, royalty_beneficiary, quantity::text
		FROM nft_tokens WHERE class_id = $1 AND token_id = $2::text::numeric`
	var (
		info                 domain.TokenInfo
		creator, beneficiary string
		royalty              int32
		quantity             string
	)
	err := n.s.tx.QueryRow(ctx, query, int64(class), numArg(uint64(token))).
		Scan(&info.Metadata, &creator, &royalty, &beneficiary, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenInfo{}, fmt.Errorf("%w: class %d token %d", domain.ErrTokenNotFound, class, token)
	}
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("postgres: get token %d/%d: %w", class, token, err)
	}
	q, err := parseU64(quantity)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	info.ClassID = class
	info.TokenID = token
	info.Creator = hexAddress(creator)
	info.RoyaltyRate = domain.Rate(royalty)
	info.RoyaltyBeneficiary = hexAddress(beneficiary)
	info.Quantity = domain.TokenID(q)
	return info, nil
}

func (n nftStore) CreateClass(ctx context.Context, owner domain.AccountID, metadata []byte, royalty domain.Rate) (domain.ClassID, error) {
	if err := n.s.writable(); err != nil {
		return 0, err
	}
	id, err := nextCounter(ctx, n.s.tx, counterNextClassID, math.MaxUint32)
	if err != nil {
		return 0, err
	}
	const query = `
		INSERT INTO nft_classes (id, owner, metadata, royalty_rate, next_token_id)
		VALUES ($1, $2, $3, $4, 0)`
	if _, err := n.s.tx.Exec(ctx, query, int64(id), accountArg(owner), metadata, int32(royalty)); err != nil {
		return 0, fmt.Errorf("postgres: create class: %w", err)
	}
	return domain.ClassID(id), nil
}

func (n nftStore) Mint(ctx context.Context, who, to domain.AccountID, class domain.ClassID, metadata []byte,
	quantity domain.TokenID, royalty *domain.Rate) (domain.TokenID, error) {
	if err := n.s.writable(); err != nil {
		return 0, err
	}
	info, err := n.Class(ctx, class)
	if err != nil {
		return 0, err
	}
	if info.NextTokenID == math.MaxUint64 {
		return 0, domain.ErrNoAvailableID
	}
	id := info.NextTokenID
	if _, err := n.s.tx.Exec(ctx,
		`UPDATE nft_classes SET next_token_id = $2::text::numeric WHERE id = $1`,
		int64(class), numArg(uint64(id+1)),
	); err != nil {
		return 0, fmt.Errorf("postgres: bump token id for class %d: %w", class, err)
	}

	rate := info.RoyaltyRate
	if royalty != nil {
		rate = *royalty
	}
	const query = `
		INSERT INTO nft_tokens (class_id, token_id, metadata, creator, royalty_rate, royalty_beneficiary, quantity)
		VALUES ($1, $2::text::numeric, $3, $4, $5, $6, $7::text::numeric)`
	_, err = n.s.tx.Exec(ctx, query, int64(class), numArg(uint64(id)), metadata,
		accountArg(to), int32(rate), accountArg(to), numArg(uint64(quantity)))
	if err != nil {
		return 0, fmt.Errorf("postgres: mint %d/%d: %w", class, id, err)
	}
	if err := n.setHolding(ctx, to, class, id, domain.TokenHolding{Quantity: quantity}); err != nil {
		return 0, err
	}
	return id, nil
}

func (n nftStore) PutToken(ctx context.Context, info domain.TokenInfo) error {
	if err := n.s.writable(); err != nil {
		return err
	}
	const query = `
		UPDATE nft_tokens SET metadata = $3, royalty_rate = $4, royalty_beneficiary = $5
		WHERE class_id = $1 AND token_id = $2::text::numeric`
	tag, err := n.s.tx.Exec(ctx, query, int64(info.ClassID), numArg(uint64(info.TokenID)),
		info.Metadata, int32(info.RoyaltyRate), accountArg(info.RoyaltyBeneficiary))
	if err != nil {
		return fmt.Errorf("postgres: update token %d/%d: %w", info.ClassID, info.TokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: class %d token %d", domain.ErrTokenNotFound, info.ClassID, info.TokenID)
	}
	return nil
}
