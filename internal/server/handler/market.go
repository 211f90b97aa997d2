package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/market"
)

// Market is the settlement engine surface the HTTP API drives.
type Market interface {
	SubmitOrder(ctx context.Context, who domain.AccountID, req market.SubmitOrderRequest) (domain.GlobalID, error)
	TakeOrder(ctx context.Context, purchaser domain.AccountID, req market.TakeRequest) error
	RemoveOrder(ctx context.Context, who domain.AccountID, id domain.GlobalID) error
	SubmitOffer(ctx context.Context, who domain.AccountID, req market.SubmitOfferRequest) (domain.GlobalID, error)
	TakeOffer(ctx context.Context, tokenOwner domain.AccountID, req market.TakeRequest) error
	RemoveOffer(ctx context.Context, who domain.AccountID, id domain.GlobalID) error

	SubmitBritishAuction(ctx context.Context, who domain.AccountID, req market.SubmitBritishAuctionRequest) (domain.GlobalID, error)
	BidBritishAuction(ctx context.Context, purchaser domain.AccountID, req market.BidRequest) error
	RedeemBritishAuction(ctx context.Context, caller, owner domain.AccountID, id domain.GlobalID) error
	RemoveBritishAuction(ctx context.Context, who domain.AccountID, id domain.GlobalID) error
	SubmitDutchAuction(ctx context.Context, who domain.AccountID, req market.SubmitDutchAuctionRequest) (domain.GlobalID, error)
	BidDutchAuction(ctx context.Context, purchaser domain.AccountID, req market.BidRequest) error
	RedeemDutchAuction(ctx context.Context, caller, owner domain.AccountID, id domain.GlobalID) error
	RemoveDutchAuction(ctx context.Context, who domain.AccountID, id domain.GlobalID) error

	CreateCategory(ctx context.Context, admin domain.AccountID, metadata []byte) (domain.GlobalID, error)
	AddWhitelist(ctx context.Context, who domain.AccountID) error
	RemoveWhitelist(ctx context.Context, who domain.AccountID) error
	UpdateParams(ctx context.Context, admin domain.AccountID, p domain.MarketParams) error
	Deposit(ctx context.Context, currency domain.CurrencyID, who domain.AccountID, amount domain.Balance) error

	CreateClass(ctx context.Context, who domain.AccountID, metadata []byte, royalty domain.Rate) (domain.ClassID, error)
	Mint(ctx context.Context, who, to domain.AccountID, class domain.ClassID, metadata []byte, quantity domain.TokenID, royalty *domain.Rate) (domain.TokenID, error)
	UpdateTokenRoyaltyBeneficiary(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, to domain.AccountID) error
	UpdateTokenRoyalty(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID, royalty *domain.Rate) error

	Order(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Order, error)
	Offer(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (domain.Offer, error)
	BritishAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (market.BritishAuctionView, error)
	DutchAuction(ctx context.Context, owner domain.AccountID, id domain.GlobalID) (market.DutchAuctionView, error)
	Listings(ctx context.Context, f domain.ListingFilter) ([]domain.ListingRef, error)
	Balance(ctx context.Context, currency domain.CurrencyID, who domain.AccountID) (market.AccountBalance, error)
	TokenHolding(ctx context.Context, who domain.AccountID, class domain.ClassID, token domain.TokenID) (domain.TokenHolding, error)
	Token(ctx context.Context, class domain.ClassID, token domain.TokenID) (domain.TokenInfo, error)
	Class(ctx context.Context, class domain.ClassID) (domain.ClassInfo, error)
	Category(ctx context.Context, id domain.GlobalID) (domain.Category, error)
	Params(ctx context.Context) (domain.MarketParams, error)
	Treasury() domain.AccountID
}

var _ Market = (*market.Engine)(nil)

// ListingHandler serves the open listing index.
type ListingHandler struct {
	market Market
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(m Market, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{market: m, logger: logHandler(logger, "listings")}
}

// ListListings returns the keys of open listings, ordered by id.
// GET /v1/listings?kind=order&owner=0x..&limit=100
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ListingFilter{Limit: parseLimit(r, 100, 1000)}

	if v := q.Get("kind"); v != "" {
		f.Kind = domain.ListingKind(v)
		if !f.Kind.Valid() {
			writeError(w, http.StatusBadRequest, "invalid kind "+v)
			return
		}
	}
	if v := q.Get("owner"); v != "" {
		owner, err := parseAccount(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Owner = &owner
	}

	refs, err := h.market.Listings(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if refs == nil {
		refs = []domain.ListingRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listings": refs,
		"count":    len(refs),
	})
}

// listingKey parses the {owner}/{id} path parameters shared by every
// listing route, writing a 400 on failure.
func listingKey(w http.ResponseWriter, r *http.Request) (domain.AccountID, domain.GlobalID, bool) {
	owner, err := pathAccount(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.AccountID{}, 0, false
	}
	id, ok := pathID(w, r)
	return owner, id, ok
}

// pathID parses the {id} path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (domain.GlobalID, bool) {
	id, err := pathUint(r, "id", 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return domain.GlobalID(id), true
}

// commissionBody is the optional referral part of a take or bid.
type commissionBody struct {
	CommissionAgent *domain.AccountID `json:"commission_agent,omitempty"`
	CommissionData  []byte            `json:"commission_data,omitempty"`
}

// decodeOptionalJSON decodes the body into v unless it is empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type (
	takeFunc   func(ctx context.Context, who domain.AccountID, req market.TakeRequest) error
	removeFunc func(ctx context.Context, who domain.AccountID, id domain.GlobalID) error
	redeemFunc func(ctx context.Context, caller, owner domain.AccountID, id domain.GlobalID) error
	bidFunc    func(ctx context.Context, purchaser domain.AccountID, req market.BidRequest) error
)

type idResponse struct {
	ID uint64 `json:"id"`
}
