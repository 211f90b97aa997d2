package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// StatusHandler serves chain position, governance parameters and categories.
type StatusHandler struct {
	market    Market
	clock     domain.Clock
	operator  domain.AccountID
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(m Market, clock domain.Clock, operator domain.AccountID, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		market:    m,
		clock:     clock,
		operator:  operator,
		startedAt: time.Now().UTC(),
		logger:    logHandler(logger, "status"),
	}
}

// GetStatus responds with the current block, the treasury and the operator.
// GET /v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	block, err := h.clock.CurrentBlock(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	resp := map[string]any{
		"block":          block,
		"treasury":       h.market.Treasury(),
		"operator":       h.operator,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	p, err := h.market.Params(r.Context())
	switch {
	case err == nil:
		resp["params"] = p
	case !errors.Is(err, domain.ErrNotFound):
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetParams returns the governance parameters.
// GET /v1/params
func (h *StatusHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	p, err := h.market.Params(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetCategory returns a category and its live listing count.
// GET /v1/categories/{id}
func (h *StatusHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.market.Category(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
