package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateMulCeil(t *testing.T) {
	tests := []struct {
		rate  Rate
		price uint64
		want  string
	}{
		{RateFromPercent(1), 100, "1"},
		{RateFromPercent(20), 100, "20"},
		{RateFromPercent(5), 100, "5"},
		{RateFromPercent(50), 500, "250"},
		{RateOne, 100, "100"},
		{0, 100, "0"},
		{RateFromPercent(10), 0, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rate.MulCeil(NewBalance(tt.price)).String(), "rate %d price %d", tt.rate, tt.price)
	}
	assert.Equal(t, MaxBalance().String(), RateOne.MulCeil(MaxBalance()).String())
}

func TestRateFromPercent(t *testing.T) {
	assert.Equal(t, Rate(655), RateFromPercent(1))
	assert.Equal(t, RateOne, RateFromPercent(100))
	assert.Equal(t, RateOne, RateFromPercent(250))
	assert.InDelta(t, 20.0, RateFromPercent(20).Percent(), 0.01)
}

func TestBalanceArithmetic(t *testing.T) {
	_, err := MaxBalance().CheckedAdd(NewBalance(1))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	_, err = NewBalance(1).CheckedSub(NewBalance(2))
	assert.ErrorIs(t, err, ErrArithmeticUnderflow)

	assert.Equal(t, MaxBalance(), MaxBalance().SaturatingAdd(NewBalance(5)))
	assert.True(t, NewBalance(3).SaturatingSub(NewBalance(5)).IsZero())
	assert.Equal(t, MaxBalance(), MaxBalance().SaturatingMul(NewBalance(2)))
	assert.Equal(t, NewBalance(3), NewBalance(3).Min(NewBalance(9)))
	assert.Equal(t, "2000000000000", Units(2).String())
}

func TestBalanceText(t *testing.T) {
	b, err := ParseBalance("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, MaxBalance(), b)

	_, err = ParseBalance("340282366920938463463374607431768211456")
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	_, err = ParseBalance("-1")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		P Balance `json:"p"`
	}{NewBalance(42)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"42"}`, string(raw))
}
