package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("memory: order: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrDutchAuctionNotFound, http.StatusNotFound},
		{domain.ErrAccountNotInWhitelist, http.StatusForbidden},
		{fmt.Errorf("%w: class 1 token 2", domain.ErrInvalidQuantity), http.StatusBadRequest},
		{domain.ErrPriceTooLow, http.StatusConflict},
		{domain.ErrBritishAuctionClosed, http.StatusConflict},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/events?limit=9000&offset=20&since=2024-05-01T00:00:00Z", nil)
	opts, err := parseListOpts(r)
	require.NoError(t, err)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)
	require.NotNil(t, opts.Since)
	assert.Equal(t, 2024, opts.Since.Year())
	assert.Nil(t, opts.Until)

	_, err = parseListOpts(httptest.NewRequest(http.MethodGet, "/v1/events?until=yesterday", nil))
	assert.Error(t, err)
}
