package domain

import "context"

// CurrencyLedger is a multi-currency balance ledger with free and reserved
// balances per account.
type CurrencyLedger interface {
	Transfer(ctx context.Context, currency CurrencyID, from, to AccountID, amount Balance) error
	Reserve(ctx context.Context, currency CurrencyID, who AccountID, amount Balance) error
	// Unreserve moves up to amount back to free and returns what was moved.
	Unreserve(ctx context.Context, currency CurrencyID, who AccountID, amount Balance) (Balance, error)
	FreeBalance(ctx context.Context, currency CurrencyID, who AccountID) (Balance, error)
	ReservedBalance(ctx context.Context, currency CurrencyID, who AccountID) (Balance, error)
	TotalBalance(ctx context.Context, currency CurrencyID, who AccountID) (Balance, error)
	TotalIssuance(ctx context.Context, currency CurrencyID) (Balance, error)
	// Deposit mints amount into who's free balance.
	Deposit(ctx context.Context, currency CurrencyID, who AccountID, amount Balance) error
}

// NFTLedger tracks semi-fungible token quantities per account.
type NFTLedger interface {
	Transfer(ctx context.Context, from, to AccountID, class ClassID, token TokenID, quantity TokenID) error
	ReserveTokens(ctx context.Context, who AccountID, class ClassID, token TokenID, quantity TokenID) error
	UnreserveTokens(ctx context.Context, who AccountID, class ClassID, token TokenID, quantity TokenID) error
	AccountToken(ctx context.Context, who AccountID, class ClassID, token TokenID) (TokenHolding, error)
	TokenChargedRoyalty(ctx context.Context, class ClassID, token TokenID) (AccountID, Rate, error)
	PeekNextClassID(ctx context.Context) (ClassID, error)
	Class(ctx context.Context, class ClassID) (ClassInfo, error)
	Token(ctx context.Context, class ClassID, token TokenID) (TokenInfo, error)
	CreateClass(ctx context.Context, owner AccountID, metadata []byte, royalty Rate) (ClassID, error)
	// Mint creates a token in class and credits quantity units to to.
	Mint(ctx context.Context, who, to AccountID, class ClassID, metadata []byte, quantity TokenID, royalty *Rate) (TokenID, error)
	// PutToken replaces the stored info of an existing token.
	PutToken(ctx context.Context, info TokenInfo) error
}

// ConfigProvider serves governance parameters, the global id counter,
// categories and the whitelist.
type ConfigProvider interface {
	Params(ctx context.Context) (MarketParams, error)
	SetParams(ctx context.Context, p MarketParams) error
	AuctionCloseDelay(ctx context.Context) (BlockNumber, error)
	MinOrderDeposit(ctx context.Context) (Balance, error)
	PlatformFeeRate(ctx context.Context) (Rate, error)
	MaxCommissionRewardRate(ctx context.Context) (Rate, error)
	MinCommissionAgentDeposit(ctx context.Context) (Balance, error)
	RoyaltiesRate(ctx context.Context) (Rate, error)

	GetThenIncID(ctx context.Context) (GlobalID, error)
	PeekNextGID(ctx context.Context) (GlobalID, error)

	CreateCategory(ctx context.Context, metadata []byte) (GlobalID, error)
	Category(ctx context.Context, id GlobalID) (Category, error)
	IncCountInCategory(ctx context.Context, id GlobalID) error
	DecCountInCategory(ctx context.Context, id GlobalID) error

	AddWhitelist(ctx context.Context, who AccountID) error
	RemoveWhitelist(ctx context.Context, who AccountID) error
	IsInWhitelist(ctx context.Context, who AccountID) (bool, error)
}

// Clock supplies the current block height.
type Clock interface {
	CurrentBlock(ctx context.Context) (BlockNumber, error)
}

// EventSink receives committed events. Emit must not block on slow consumers.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}
