package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// AssetHandler serves NFT classes, tokens and account balances.
type AssetHandler struct {
	market Market
	logger *slog.Logger
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(m Market, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{market: m, logger: logHandler(logger, "assets")}
}

type createClassRequest struct {
	Metadata    []byte      `json:"metadata"`
	RoyaltyRate domain.Rate `json:"royalty_rate"`
}

type mintRequest struct {
	To          *domain.AccountID `json:"to,omitempty"`
	Metadata    []byte            `json:"metadata"`
	Quantity    domain.TokenID    `json:"quantity"`
	RoyaltyRate *domain.Rate      `json:"royalty_rate,omitempty"`
}

type royaltyRequest struct {
	RoyaltyRate *domain.Rate `json:"royalty_rate"`
}

type beneficiaryRequest struct {
	Beneficiary domain.AccountID `json:"beneficiary"`
}

// CreateClass creates an NFT class owned by the caller.
// POST /v1/classes
func (h *AssetHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req createClassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.CreateClass(r.Context(), who, req.Metadata, req.RoyaltyRate)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetClass returns a class.
// GET /v1/classes/{class}
func (h *AssetHandler) GetClass(w http.ResponseWriter, r *http.Request) {
	class, ok := pathClass(w, r)
	if !ok {
		return
	}
	info, err := h.market.Class(r.Context(), class)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Mint mints a token in one of the caller's classes. The recipient defaults
// to the caller.
// POST /v1/classes/{class}/tokens
func (h *AssetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	class, ok := pathClass(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := who
	if req.To != nil {
		to = *req.To
	}
	id, err := h.market.Mint(r.Context(), who, to, class, req.Metadata, req.Quantity, req.RoyaltyRate)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// GetToken returns a token.
// GET /v1/classes/{class}/tokens/{token}
func (h *AssetHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	class, token, ok := pathToken(w, r)
	if !ok {
		return
	}
	info, err := h.market.Token(r.Context(), class, token)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// UpdateTokenRoyalty changes a token's royalty rate. A null rate restores
// the class default.
// PUT /v1/classes/{class}/tokens/{token}/royalty
func (h *AssetHandler) UpdateTokenRoyalty(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	class, token, ok := pathToken(w, r)
	if !ok {
		return
	}
	var req royaltyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.market.UpdateTokenRoyalty(r.Context(), who, class, token, req.RoyaltyRate); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// UpdateTokenRoyaltyBeneficiary hands a token's royalty to another account.
// PUT /v1/classes/{class}/tokens/{token}/beneficiary
func (h *AssetHandler) UpdateTokenRoyaltyBeneficiary(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	class, token, ok := pathToken(w, r)
	if !ok {
		return
	}
	var req beneficiaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.market.UpdateTokenRoyaltyBeneficiary(r.Context(), who, class, token, req.Beneficiary); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GetBalance returns an account's free and reserved balance.
// GET /v1/accounts/{account}/balance?currency=0
func (h *AssetHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	who, err := pathAccount(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	currency := domain.NativeCurrencyID
	if v := r.URL.Query().Get("currency"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid currency "+strconv.Quote(v))
			return
		}
		currency = domain.CurrencyID(n)
	}
	bal, err := h.market.Balance(r.Context(), currency, who)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":  who,
		"currency": currency,
		"free":     bal.Free,
		"reserved": bal.Reserved,
	})
}

// GetHolding returns an account's quantity of one token.
// GET /v1/accounts/{account}/tokens/{class}/{token}
func (h *AssetHandler) GetHolding(w http.ResponseWriter, r *http.Request) {
	who, err := pathAccount(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	class, token, ok := pathToken(w, r)
	if !ok {
		return
	}
	holding, err := h.market.TokenHolding(r.Context(), who, class, token)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":  who,
		"class_id": class,
		"token_id": token,
		"quantity": holding.Quantity,
		"reserved": holding.Reserved,
		"free":     holding.Free(),
	})
}

func pathClass(w http.ResponseWriter, r *http.Request) (domain.ClassID, bool) {
	n, err := pathUint(r, "class", 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return domain.ClassID(n), true
}

func pathToken(w http.ResponseWriter, r *http.Request) (domain.ClassID, domain.TokenID, bool) {
	class, ok := pathClass(w, r)
	if !ok {
		return 0, 0, false
	}
	n, err := pathUint(r, "token", 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return class, domain.TokenID(n), true
}
