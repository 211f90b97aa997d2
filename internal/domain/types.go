package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// AccountID identifies a market participant.
type AccountID = common.Address

type (
	ClassID     uint32
	TokenID     uint64
	GlobalID    uint64
	CurrencyID  uint32
	BlockNumber uint64
)

// NativeCurrencyID is the currency deposits are held in.
const NativeCurrencyID CurrencyID = 0

// Block time constants. One block every six seconds.
const (
	BlocksPerMinute BlockNumber = 10
	Minutes                     = BlocksPerMinute
	Hours                       = 60 * Minutes
	Days                        = 24 * Hours
)

// MaxTokensPerListing bounds the number of lines in one bundle.
const MaxTokensPerListing = 100

// OrderItem is one line of a listed bundle.
type OrderItem struct {
	ClassID  ClassID `json:"class_id"`
	TokenID  TokenID `json:"token_id"`
	Quantity TokenID `json:"quantity"`
}

// Order is a seller-initiated fixed-price listing, keyed by (seller, id).
type Order struct {
	CurrencyID     CurrencyID  `json:"currency_id"`
	Deposit        Balance     `json:"deposit"`
	Price          Balance     `json:"price"`
	Deadline       BlockNumber `json:"deadline"`
	CategoryID     GlobalID    `json:"category_id"`
	Items          []OrderItem `json:"items"`
	CommissionRate Rate        `json:"commission_rate"`
}

// Offer is a buyer-initiated fixed-price bid, keyed by (buyer, id). The
// buyer escrows Price in CurrencyID.
type Offer struct {
	CurrencyID     CurrencyID  `json:"currency_id"`
	Price          Balance     `json:"price"`
	Deadline       BlockNumber `json:"deadline"`
	CategoryID     GlobalID    `json:"category_id"`
	Items          []OrderItem `json:"items"`
	CommissionRate Rate        `json:"commission_rate"`
}

// BritishAuction is an ascending auction, keyed by (seller, id).
// A zero HammerPrice disables early close.
type BritishAuction struct {
	CurrencyID     CurrencyID  `json:"currency_id"`
	HammerPrice    Balance     `json:"hammer_price"`
	MinRaise       Rate        `json:"min_raise"`
	Deposit        Balance     `json:"deposit"`
	InitPrice      Balance     `json:"init_price"`
	Deadline       BlockNumber `json:"deadline"`
	AllowDelay     bool        `json:"allow_delay"`
	CategoryID     GlobalID    `json:"category_id"`
	Items          []OrderItem `json:"items"`
	CommissionRate Rate        `json:"commission_rate"`
}

// DutchAuction is a descending-price auction, keyed by (seller, id).
// 0 < MinPrice < MaxPrice and CreatedBlock < Deadline.
type DutchAuction struct {
	CurrencyID          CurrencyID  `json:"currency_id"`
	CategoryID          GlobalID    `json:"category_id"`
	Deposit             Balance     `json:"deposit"`
	MinPrice            Balance     `json:"min_price"`
	MaxPrice            Balance     `json:"max_price"`
	Deadline            BlockNumber `json:"deadline"`
	CreatedBlock        BlockNumber `json:"created_block"`
	Items               []OrderItem `json:"items"`
	AllowBritishAuction bool        `json:"allow_british_auction"`
	MinRaise            Rate        `json:"min_raise"`
	CommissionRate      Rate        `json:"commission_rate"`
}

// AuctionBid is the current winning bid of an auction, keyed by the
// auction's id. A nil LastBidAccount means nobody has bid yet.
type AuctionBid struct {
	LastBidPrice    Balance     `json:"last_bid_price"`
	LastBidAccount  *AccountID  `json:"last_bid_account,omitempty"`
	LastBidBlock    BlockNumber `json:"last_bid_block"`
	CommissionAgent *AccountID  `json:"commission_agent,omitempty"`
	CommissionData  []byte      `json:"commission_data,omitempty"`
}

// HasBid reports whether any account has bid.
func (b AuctionBid) HasBid() bool { return b.LastBidAccount != nil }

type (
	BritishAuctionBid AuctionBid
	DutchAuctionBid   AuctionBid
)

// Commission is a referral payout resolved before settlement. Eligible is
// false when the agent does not qualify; the tuple is still reported in events.
type Commission struct {
	Eligible bool      `json:"eligible"`
	Agent    AccountID `json:"agent"`
	Rate     Rate      `json:"rate"`
}

// Category tags listings. Count tracks live listings.
type Category struct {
	ID       GlobalID `json:"id"`
	Metadata []byte   `json:"metadata"`
	Count    uint64   `json:"count"`
}

// TokenHolding is an account's quantity of one token.
type TokenHolding struct {
	Quantity TokenID `json:"quantity"`
	Reserved TokenID `json:"reserved"`
}

// Free returns the unreserved quantity.
func (h TokenHolding) Free() TokenID {
	if h.Reserved > h.Quantity {
		return 0
	}
	return h.Quantity - h.Reserved
}

// ClassInfo describes an NFT class.
type ClassInfo struct {
	ID          ClassID   `json:"id"`
	Owner       AccountID `json:"owner"`
	Metadata    []byte    `json:"metadata"`
	RoyaltyRate Rate      `json:"royalty_rate"`
	NextTokenID TokenID   `json:"next_token_id"`
}

// TokenInfo describes a minted token.
type TokenInfo struct {
	ClassID            ClassID   `json:"class_id"`
	TokenID            TokenID   `json:"token_id"`
	Metadata           []byte    `json:"metadata"`
	Creator            AccountID `json:"creator"`
	RoyaltyRate        Rate      `json:"royalty_rate"`
	RoyaltyBeneficiary AccountID `json:"royalty_beneficiary"`
	Quantity           TokenID   `json:"quantity"`
}

// MarketParams are the governance-controlled knobs the engines read.
type MarketParams struct {
	MinOrderDeposit           Balance     `json:"min_order_deposit"`
	PlatformFeeRate           Rate        `json:"platform_fee_rate"`
	MaxCommissionRewardRate   Rate        `json:"max_commission_reward_rate"`
	MinCommissionAgentDeposit Balance     `json:"min_commission_agent_deposit"`
	RoyaltiesRate             Rate        `json:"royalties_rate"`
	AuctionCloseDelay         BlockNumber `json:"auction_close_delay"`
}

// ListingKind names one of the four listing record types.
type ListingKind string

const (
	KindOrder          ListingKind = "order"
	KindOffer          ListingKind = "offer"
	KindBritishAuction ListingKind = "british_auction"
	KindDutchAuction   ListingKind = "dutch_auction"
)

// Valid reports whether k is a known kind.
func (k ListingKind) Valid() bool {
	switch k {
	case KindOrder, KindOffer, KindBritishAuction, KindDutchAuction:
		return true
	}
	return false
}

// ListingRef is the composite key of a listing.
type ListingRef struct {
	Kind  ListingKind `json:"kind"`
	Owner AccountID   `json:"owner"`
	ID    GlobalID    `json:"id"`
}
