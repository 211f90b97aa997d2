package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftmart/internal/market"
)

// OrderHandler serves fixed-price orders and offers.
type OrderHandler struct {
	market Market
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(m Market, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{market: m, logger: logHandler(logger, "orders")}
}

// SubmitOrder lists the caller's bundle at a fixed price.
// POST /v1/orders
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req market.SubmitOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.SubmitOrder(r.Context(), who, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetOrder returns one order.
// GET /v1/orders/{owner}/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	o, err := h.market.Order(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// TakeOrder buys an order at its listed price.
// POST /v1/orders/{owner}/{id}/take
func (h *OrderHandler) TakeOrder(w http.ResponseWriter, r *http.Request) {
	h.take(w, r, h.market.TakeOrder)
}

// RemoveOrder cancels one of the caller's orders.
// DELETE /v1/orders/{id}
func (h *OrderHandler) RemoveOrder(w http.ResponseWriter, r *http.Request) {
	removeListing(w, r, h.logger, h.market.RemoveOrder)
}

// SubmitOffer escrows the caller's price for a bundle.
// POST /v1/offers
func (h *OrderHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req market.SubmitOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.SubmitOffer(r.Context(), who, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetOffer returns one offer.
// GET /v1/offers/{owner}/{id}
func (h *OrderHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	o, err := h.market.Offer(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// TakeOffer sells the offered bundle to the offer's owner.
// POST /v1/offers/{owner}/{id}/take
func (h *OrderHandler) TakeOffer(w http.ResponseWriter, r *http.Request) {
	h.take(w, r, h.market.TakeOffer)
}

// RemoveOffer cancels one of the caller's offers.
// DELETE /v1/offers/{id}
func (h *OrderHandler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	removeListing(w, r, h.logger, h.market.RemoveOffer)
}

func (h *OrderHandler) take(w http.ResponseWriter, r *http.Request, fn takeFunc) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	owner, id, ok := listingKey(w, r)
	if !ok {
		return
	}
	var body commissionBody
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := fn(r.Context(), who, market.TakeRequest{
		ID:              id,
		Owner:           owner,
		CommissionAgent: body.CommissionAgent,
		CommissionData:  body.CommissionData,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "taken"})
}

// removeListing cancels the caller's listing {id} through fn.
func removeListing(w http.ResponseWriter, r *http.Request, logger *slog.Logger, fn removeFunc) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), who, id); err != nil {
		writeDomainError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
