package market

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// DecayInterval is the step size of a Dutch auction's price schedule. The
// price only moves once per interval.
const DecayInterval = 30 * domain.Minutes

// CurrentPrice returns a Dutch auction's asking price at block current.
//
// The elapsed time is floored to whole DecayIntervals and the price is
// interpolated linearly from maxPrice at created down to minPrice at
// deadline. The amount subtracted from maxPrice is rounded down, so the
// result rounds toward maxPrice.
func CurrentPrice(maxPrice, minPrice domain.Balance, created, deadline, current domain.BlockNumber) domain.Balance {
	if current <= created {
		return maxPrice
	}
	if current > deadline {
		return minPrice
	}
	span := deadline - created
	if span == 0 {
		return maxPrice
	}

	elapsed := (current - created) / DecayInterval * DecayInterval

	diff := maxPrice.SaturatingSub(minPrice).Uint256()
	drop, overflow := new(uint256.Int).MulDivOverflow(
		diff,
		uint256.NewInt(uint64(elapsed)),
		uint256.NewInt(uint64(span)),
	)
	if overflow {
		return minPrice
	}
	return maxPrice.SaturatingSub(domain.BalanceFromUint256(drop))
}

// EffectiveDeadline returns the block after which an auction stops taking
// bids. With allowDelay every bid pushes the close out to lastBidBlock+delay,
// never earlier than deadline.
func EffectiveDeadline(allowDelay bool, deadline, lastBidBlock, delay domain.BlockNumber) domain.BlockNumber {
	if !allowDelay {
		return deadline
	}
	extended := lastBidBlock + delay
	if extended < lastBidBlock {
		extended = ^domain.BlockNumber(0)
	}
	return max(deadline, extended)
}
