package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

// Validation.
var (
	ErrSubmitWithInvalidDeposit            = errors.New("submit with invalid deposit")
	ErrSubmitWithInvalidDeadline           = errors.New("submit with invalid deadline")
	ErrInvalidHammerPrice                  = errors.New("invalid hammer price")
	ErrInvalidDutchMinPrice                = errors.New("invalid dutch min price")
	ErrMaxPriceShouldBeGreaterThanMinPrice = errors.New("max price should be greater than min price")
	ErrTooManyTokenChargedRoyalty          = errors.New("too many tokens charged royalty")
	ErrInvalidCommissionRate               = errors.New("invalid commission rate")
	ErrEmptyTokenList                      = errors.New("empty token list")
	ErrTooManyTokens                       = errors.New("too many tokens")
	ErrInvalidQuantity                     = errors.New("invalid quantity")
	ErrRoyaltyRateTooHigh                  = errors.New("royalty rate too high")
)

// Not found.
var (
	ErrBritishAuctionNotFound    = errors.New("british auction not found")
	ErrBritishAuctionBidNotFound = errors.New("british auction bid not found")
	ErrDutchAuctionNotFound      = errors.New("dutch auction not found")
	ErrDutchAuctionBidNotFound   = errors.New("dutch auction bid not found")
	ErrOrderNotFound             = errors.New("order not found")
	ErrOfferNotFound             = errors.New("offer not found")
	ErrCategoryNotFound          = errors.New("category not found")
	ErrClassNotFound             = errors.New("class not found")
	ErrTokenNotFound             = errors.New("token not found")
)

// State and timing.
var (
	ErrBritishAuctionClosed             = errors.New("british auction closed")
	ErrDutchAuctionClosed               = errors.New("dutch auction closed")
	ErrTakeExpiredOrderOrOffer          = errors.New("take expired order or offer")
	ErrCannotRedeemAuctionUntilDeadline = errors.New("cannot redeem auction until deadline")
	ErrCannotRedeemAuctionNoBid         = errors.New("cannot redeem auction with no bid")
	ErrCannotRemoveAuction              = errors.New("cannot remove auction with a bid")
	ErrDuplicatedBid                    = errors.New("duplicated bid")
	ErrPriceTooLow                      = errors.New("price too low")
)

// Authorization.
var (
	ErrTakeOwnOrder          = errors.New("cannot take own order")
	ErrTakeOwnOffer          = errors.New("cannot take own offer")
	ErrSelfBid               = errors.New("cannot bid on own auction")
	ErrSenderTakeCommission  = errors.New("sender cannot take commission")
	ErrNoPermission          = errors.New("no permission")
	ErrAccountNotInWhitelist = errors.New("account not in whitelist")
)

// Ledger failures raised by the currency and NFT collaborators.
var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow      = errors.New("arithmetic underflow")
	ErrNoAvailableID            = errors.New("no available id")
)
