package domain

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Accuracy is the number of smallest units in one whole currency unit.
const Accuracy uint64 = 1_000_000_000_000

// maxBalance is 2^128 - 1, the largest amount a Balance can hold.
var maxBalance = func() uint256.Int {
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), 128)
	m.SubUint64(&m, 1)
	return m
}()

// Balance is an unsigned 128-bit amount in the smallest currency unit.
// The zero value is a zero balance.
type Balance struct {
	v uint256.Int
}

// NewBalance returns a Balance holding n.
func NewBalance(n uint64) Balance {
	var b Balance
	b.v.SetUint64(n)
	return b
}

// MaxBalance returns the largest representable Balance.
func MaxBalance() Balance {
	return Balance{v: maxBalance}
}

// Units returns n whole currency units (n * Accuracy), saturating.
func Units(n uint64) Balance {
	return NewBalance(n).SaturatingMul(NewBalance(Accuracy))
}

// ParseBalance parses a base-10 amount.
func ParseBalance(s string) (Balance, error) {
	var b Balance
	if err := b.v.SetFromDecimal(s); err != nil {
		return Balance{}, fmt.Errorf("parse balance %q: %w", s, err)
	}
	if b.v.Gt(&maxBalance) {
		return Balance{}, fmt.Errorf("parse balance %q: %w", s, ErrArithmeticOverflow)
	}
	return b, nil
}

// BalanceFromUint256 converts u, clamping to MaxBalance.
func BalanceFromUint256(u *uint256.Int) Balance {
	if u.Gt(&maxBalance) {
		return MaxBalance()
	}
	return Balance{v: *u}
}

// Uint256 returns a copy of the underlying 256-bit value.
func (b Balance) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&b.v)
}

// Big returns b as a big.Int.
func (b Balance) Big() *big.Int {
	return b.v.ToBig()
}

// IsZero reports whether b is zero.
func (b Balance) IsZero() bool { return b.v.IsZero() }

// Cmp returns -1, 0 or +1 depending on whether b is less than, equal to or
// greater than o.
func (b Balance) Cmp(o Balance) int { return b.v.Cmp(&o.v) }

// LessThan reports b < o.
func (b Balance) LessThan(o Balance) bool { return b.v.Lt(&o.v) }

// Uint64 returns the low 64 bits and whether b fits in a uint64.
func (b Balance) Uint64() (uint64, bool) {
	return b.v.Uint64(), b.v.IsUint64()
}

func (b Balance) String() string { return b.v.Dec() }

// CheckedAdd returns b + o or ErrArithmeticOverflow.
func (b Balance) CheckedAdd(o Balance) (Balance, error) {
	var r Balance
	if _, overflow := r.v.AddOverflow(&b.v, &o.v); overflow || r.v.Gt(&maxBalance) {
		return Balance{}, ErrArithmeticOverflow
	}
	return r, nil
}

// CheckedSub returns b - o or ErrArithmeticUnderflow.
func (b Balance) CheckedSub(o Balance) (Balance, error) {
	if b.v.Lt(&o.v) {
		return Balance{}, ErrArithmeticUnderflow
	}
	var r Balance
	r.v.Sub(&b.v, &o.v)
	return r, nil
}

// SaturatingAdd returns b + o clamped to MaxBalance.
func (b Balance) SaturatingAdd(o Balance) Balance {
	r, err := b.CheckedAdd(o)
	if err != nil {
		return MaxBalance()
	}
	return r
}

// SaturatingSub returns b - o clamped to zero.
func (b Balance) SaturatingSub(o Balance) Balance {
	r, err := b.CheckedSub(o)
	if err != nil {
		return Balance{}
	}
	return r
}

// SaturatingMul returns b * o clamped to MaxBalance.
func (b Balance) SaturatingMul(o Balance) Balance {
	var r uint256.Int
	if _, overflow := r.MulOverflow(&b.v, &o.v); overflow {
		return MaxBalance()
	}
	return BalanceFromUint256(&r)
}

// Min returns the smaller of b and o.
func (b Balance) Min(o Balance) Balance {
	if o.v.Lt(&b.v) {
		return o
	}
	return b
}

// MarshalText encodes b as a base-10 string. JSON and TOML both go through it.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.v.Dec()), nil
}

// UnmarshalText decodes a base-10 string.
func (b *Balance) UnmarshalText(text []byte) error {
	parsed, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Rate is a fraction expressed in parts per 65535 (PerU16).
type Rate uint16

// RateOne is 100%.
const RateOne Rate = math.MaxUint16

// RateFromPercent converts a whole percentage, flooring to the nearest part.
// Values above 100 clamp to RateOne.
func RateFromPercent(p uint16) Rate {
	if p >= 100 {
		return RateOne
	}
	return Rate(uint32(p) * uint32(RateOne) / 100)
}

// IsZero reports whether r is 0%.
func (r Rate) IsZero() bool { return r == 0 }

// MulCeil returns ceil(b * r / 65535). The result never exceeds b.
func (r Rate) MulCeil(b Balance) Balance {
	if r == 0 || b.IsZero() {
		return Balance{}
	}
	var prod uint256.Int
	prod.Mul(&b.v, uint256.NewInt(uint64(r)))
	den := uint256.NewInt(uint64(RateOne))

	var q, rem uint256.Int
	q.Div(&prod, den)
	rem.Mod(&prod, den)
	if !rem.IsZero() {
		q.AddUint64(&q, 1)
	}
	return BalanceFromUint256(&q)
}

// Percent renders r as a percentage for logs and notifications.
func (r Rate) Percent() float64 {
	return float64(r) * 100 / float64(RateOne)
}
