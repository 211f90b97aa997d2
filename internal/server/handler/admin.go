package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// AdminHandler serves operator-only governance routes. The router restricts
// every route to the operator account.
type AdminHandler struct {
	market Market
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(m Market, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{market: m, logger: logHandler(logger, "admin")}
}

type categoryRequest struct {
	Metadata []byte `json:"metadata"`
}

type whitelistRequest struct {
	Account domain.AccountID `json:"account"`
}

type depositRequest struct {
	CurrencyID domain.CurrencyID `json:"currency_id"`
	Account    domain.AccountID  `json:"account"`
	Amount     domain.Balance    `json:"amount"`
}

// CreateCategory registers a listing category.
// POST /v1/admin/categories
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.market.CreateCategory(r.Context(), who, req.Metadata)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: uint64(id)})
}

// UpdateParams replaces the governance parameters.
// PUT /v1/admin/params
func (h *AdminHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var p domain.MarketParams
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.market.UpdateParams(r.Context(), who, p); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin: params updated",
		slog.String("operator", who.Hex()),
		slog.Float64("platform_fee_pct", p.PlatformFeeRate.Percent()),
		slog.Float64("royalties_pct", p.RoyaltiesRate.Percent()),
	)
	writeJSON(w, http.StatusOK, p)
}

// AddWhitelist allows an account to create classes and receive mints.
// POST /v1/admin/whitelist
func (h *AdminHandler) AddWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.market.AddWhitelist(r.Context(), req.Account); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// RemoveWhitelist revokes an account's whitelist entry.
// DELETE /v1/admin/whitelist/{account}
func (h *AdminHandler) RemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	who, err := pathAccount(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.market.RemoveWhitelist(r.Context(), who); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Deposit credits currency to an account.
// POST /v1/admin/deposits
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount.IsZero() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if err := h.market.Deposit(r.Context(), req.CurrencyID, req.Account, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}
