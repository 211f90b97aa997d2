package domain

import "time"

// EventKind names a market transition.
type EventKind string

const (
	EventCreatedOrder           EventKind = "CreatedOrder"
	EventTakenOrder             EventKind = "TakenOrder"
	EventRemovedOrder           EventKind = "RemovedOrder"
	EventCreatedOffer           EventKind = "CreatedOffer"
	EventTakenOffer             EventKind = "TakenOffer"
	EventRemovedOffer           EventKind = "RemovedOffer"
	EventCreatedBritishAuction  EventKind = "CreatedBritishAuction"
	EventBidBritishAuction      EventKind = "BidBritishAuction"
	EventHammerBritishAuction   EventKind = "HammerBritishAuction"
	EventRedeemedBritishAuction EventKind = "RedeemedBritishAuction"
	EventRemovedBritishAuction  EventKind = "RemovedBritishAuction"
	EventCreatedDutchAuction    EventKind = "CreatedDutchAuction"
	EventBidDutchAuction        EventKind = "BidDutchAuction"
	EventRedeemedDutchAuction   EventKind = "RedeemedDutchAuction"
	EventRemovedDutchAuction    EventKind = "RemovedDutchAuction"
	EventCreatedCategory        EventKind = "CreatedCategory"
	EventCreatedClass           EventKind = "CreatedClass"
	EventMintedToken            EventKind = "MintedToken"
	EventParamsUpdated          EventKind = "ParamsUpdated"
)

// Event is one committed market transition. Who is the caller; Counterparty
// is the other account involved, when there is one.
type Event struct {
	ID             string      `json:"id"`
	Kind           EventKind   `json:"kind"`
	Block          BlockNumber `json:"block"`
	Who            AccountID   `json:"who"`
	Counterparty   *AccountID  `json:"counterparty,omitempty"`
	ListingID      GlobalID    `json:"listing_id"`
	Price          *Balance    `json:"price,omitempty"`
	Commission     *Commission `json:"commission,omitempty"`
	CommissionData []byte      `json:"commission_data,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Settled reports whether the event moved currency and NFTs between parties.
func (e Event) Settled() bool {
	switch e.Kind {
	case EventTakenOrder, EventTakenOffer, EventHammerBritishAuction,
		EventRedeemedBritishAuction, EventRedeemedDutchAuction:
		return true
	}
	return false
}
