package domain

import "time"

// EventType identifies an engine state transition.
type EventType string

const (
	EventMarketCreated       EventType = "market_created"
	EventSharesBought        EventType = "shares_bought"
	EventSharesSold          EventType = "shares_sold"
	EventMarketResolved      EventType = "market_resolved"
	EventMarketCancelled     EventType = "market_cancelled"
	EventWinningsClaimed     EventType = "winnings_claimed"
	EventStakeRefunded       EventType = "stake_refunded"
	EventBatchLegFilled      EventType = "batch_leg_filled"
	EventBatchLegRejected    EventType = "batch_leg_rejected"
	EventResolutionRequested EventType = "resolution_requested"
	EventResolutionDisputed  EventType = "resolution_disputed"
	EventResolutionSettled   EventType = "resolution_settled"
)

// Event is emitted by the engine for every state transition. It carries
// enough identifying data (market, account, option, amount, shares) for the
// off-chain indexer to reconstruct net positions without re-querying state.
type Event struct {
	Type     EventType `json:"type"`
	MarketID string    `json:"market_id"`
	Account  string    `json:"account,omitempty"`

	// Option is the affected option index, or -1 when the event concerns
	// the whole market.
	Option  int   `json:"option"`
	Winners []int `json:"winners,omitempty"`

	Amount int64 `json:"amount,omitempty"`
	Shares int64 `json:"shares,omitempty"`

	// Reason carries the failure cause on batch_leg_rejected events.
	Reason string    `json:"reason,omitempty"`
	Kind   ErrorKind `json:"kind,omitempty"`

	At time.Time `json:"at"`
}
