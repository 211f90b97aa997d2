package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/server/middleware"
)

const maxRequestBody = 1 << 20

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus groups the sentinel errors by the HTTP status they surface as.
var errorStatus = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{
		domain.ErrNotFound,
		domain.ErrOrderNotFound, domain.ErrOfferNotFound,
		domain.ErrBritishAuctionNotFound, domain.ErrBritishAuctionBidNotFound,
		domain.ErrDutchAuctionNotFound, domain.ErrDutchAuctionBidNotFound,
		domain.ErrCategoryNotFound, domain.ErrClassNotFound, domain.ErrTokenNotFound,
	}},
	{http.StatusForbidden, []error{
		domain.ErrNoPermission, domain.ErrAccountNotInWhitelist,
	}},
	{http.StatusBadRequest, []error{
		domain.ErrSubmitWithInvalidDeposit, domain.ErrSubmitWithInvalidDeadline,
		domain.ErrInvalidHammerPrice, domain.ErrInvalidDutchMinPrice,
		domain.ErrMaxPriceShouldBeGreaterThanMinPrice, domain.ErrTooManyTokenChargedRoyalty,
		domain.ErrInvalidCommissionRate, domain.ErrEmptyTokenList, domain.ErrTooManyTokens,
		domain.ErrInvalidQuantity, domain.ErrRoyaltyRateTooHigh,
		domain.ErrTakeOwnOrder, domain.ErrTakeOwnOffer, domain.ErrSelfBid,
		domain.ErrSenderTakeCommission,
	}},
	{http.StatusConflict, []error{
		domain.ErrAlreadyExists, domain.ErrLockHeld,
		domain.ErrBritishAuctionClosed, domain.ErrDutchAuctionClosed,
		domain.ErrTakeExpiredOrderOrOffer, domain.ErrCannotRedeemAuctionUntilDeadline,
		domain.ErrCannotRedeemAuctionNoBid, domain.ErrCannotRemoveAuction,
		domain.ErrDuplicatedBid, domain.ErrPriceTooLow,
	}},
	{http.StatusUnprocessableEntity, []error{
		domain.ErrInsufficientBalance, domain.ErrInsufficientTokenBalance,
		domain.ErrArithmeticOverflow, domain.ErrArithmeticUnderflow, domain.ErrNoAvailableID,
	}},
	{http.StatusTooManyRequests, []error{domain.ErrRateLimited}},
	{http.StatusUnauthorized, []error{domain.ErrUnauthorized}},
}

// statusFor maps err onto an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, group := range errorStatus {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// writeDomainError reports err to the client. Internal failures are logged
// and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// caller returns the authenticated account, writing a 401 when the request
// was not signed.
func caller(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	who, ok := middleware.Caller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "signed request required")
	}
	return who, ok
}

// parseAccount parses a 0x-prefixed hex address.
func parseAccount(s string) (domain.AccountID, error) {
	if !common.IsHexAddress(s) {
		return domain.AccountID{}, fmt.Errorf("invalid account %q", s)
	}
	return common.HexToAddress(s), nil
}

// pathAccount parses the named path parameter as an account.
func pathAccount(r *http.Request, name string) (domain.AccountID, error) {
	return parseAccount(pathParam(r, name))
}

// pathUint parses the named path parameter as an unsigned integer of the
// given bit size.
func pathUint(r *http.Request, name string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(pathParam(r, name), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, pathParam(r, name))
	}
	return n, nil
}

// parseLimit reads ?limit=, defaulting to def and capping at ceiling.
func parseLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0. since and until take RFC 3339 times.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: parseLimit(r, 50, 500)}

	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.ListOpts{}, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = &t
	}
	return opts, nil
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
