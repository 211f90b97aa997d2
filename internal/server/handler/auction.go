package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/market"
)

// AuctionHandler serves British and Dutch auctions.
type AuctionHandler struct {
	market Market
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(m Market, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{market: m, logger: logHandler(logger, "auctions")}
}

type bidBody struct {
	Price domain.Balance `json:"price"`
	commissionBody
}

// SubmitBritishAuction opens an ascending auction.
// POST /v1/auctions/british
func (h *AuctionHandler) SubmitBritishAuction(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req market.SubmitBritishAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.SubmitBritishAuction(r.Context(), who, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetBritishAuction returns an auction with its leading bid.
// GET /v1/auctions/british/{owner}/{id}
func (h *AuctionHandler) GetBritishAuction(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	v, err := h.market.BritishAuction(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// BidBritishAuction raises the leading bid.
// POST /v1/auctions/british/{owner}/{id}/bids
func (h *AuctionHandler) BidBritishAuction(w http.ResponseWriter, r *http.Request) {
	h.bid(w, r, h.market.BidBritishAuction)
}

// RedeemBritishAuction settles an auction after its deadline.
// POST /v1/auctions/british/{owner}/{id}/redeem
func (h *AuctionHandler) RedeemBritishAuction(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.market.RedeemBritishAuction)
}

// RemoveBritishAuction cancels one of the caller's auctions without bids.
// DELETE /v1/auctions/british/{id}
func (h *AuctionHandler) RemoveBritishAuction(w http.ResponseWriter, r *http.Request) {
	removeListing(w, r, h.logger, h.market.RemoveBritishAuction)
}

// SubmitDutchAuction opens a descending-price auction.
// POST /v1/auctions/dutch
func (h *AuctionHandler) SubmitDutchAuction(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req market.SubmitDutchAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.SubmitDutchAuction(r.Context(), who, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetDutchAuction returns an auction with its leading bid and current price.
// GET /v1/auctions/dutch/{owner}/{id}
func (h *AuctionHandler) GetDutchAuction(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	v, err := h.market.DutchAuction(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// BidDutchAuction buys at the current price, or raises the bid once the
// auction has turned British.
// POST /v1/auctions/dutch/{owner}/{id}/bids
func (h *AuctionHandler) BidDutchAuction(w http.ResponseWriter, r *http.Request) {
	h.bid(w, r, h.market.BidDutchAuction)
}

// RedeemDutchAuction settles a British-phase Dutch auction.
// POST /v1/auctions/dutch/{owner}/{id}/redeem
func (h *AuctionHandler) RedeemDutchAuction(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.market.RedeemDutchAuction)
}

// RemoveDutchAuction cancels one of the caller's auctions without bids.
// DELETE /v1/auctions/dutch/{id}
func (h *AuctionHandler) RemoveDutchAuction(w http.ResponseWriter, r *http.Request) {
	removeListing(w, r, h.logger, h.market.RemoveDutchAuction)
}

func (h *AuctionHandler) bid(w http.ResponseWriter, r *http.Request, fn bidFunc) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	var body bidBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := fn(r.Context(), who, market.BidRequest{
		Price:           body.Price,
		Owner:           owner,
		ID:              id,
		CommissionAgent: body.CommissionAgent,
		CommissionData:  body.CommissionData,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *AuctionHandler) redeem(w http.ResponseWriter, r *http.Request, fn redeemFunc) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), who, owner, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "redeemed"})
}
