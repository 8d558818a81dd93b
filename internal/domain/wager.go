package domain

import "time"

// WagerSide distinguishes buys from sells in the wager history.
type WagerSide string

const (
	WagerSideBuy  WagerSide = "buy"
	WagerSideSell WagerSide = "sell"
)

// Wager is the persisted record of a single executed ledger mutation. For
// buys, Amount is the value paid in and Shares the shares minted; for sells,
// Shares is the shares burned and Amount the payout.
type Wager struct {
	ID       string    `json:"id"`
	MarketID string    `json:"market_id"`
	Account  string    `json:"account"`
	Option   int       `json:"option"`
	Side     WagerSide `json:"side"`
	Amount   int64     `json:"amount"`
	Shares   int64     `json:"shares"`

	// BatchID groups wagers executed as legs of one batch call.
	BatchID   string    `json:"batch_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WagerLeg is one requested leg of a batch wager.
type WagerLeg struct {
	MarketID string `json:"market_id"`
	Option   int    `json:"option"`
	Amount   int64  `json:"amount"`
}

// LegStatus is the per-leg outcome of a batch execution.
type LegStatus string

const (
	LegStatusFilled   LegStatus = "filled"
	LegStatusRejected LegStatus = "rejected"
)

// LegResult reports the outcome of a single batch leg. Rejected legs carry
// the failure reason and its taxonomy kind; other legs in the batch are
// unaffected.
type LegResult struct {
	Leg    WagerLeg  `json:"leg"`
	Status LegStatus `json:"status"`
	Shares int64     `json:"shares,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Kind   ErrorKind `json:"kind,omitempty"`
}

// BatchResult aggregates a batch execution. Spent equals the sum of amounts
// of the filled legs exactly; Refund is the unspent remainder of the declared
// total, returned to the caller.
type BatchResult struct {
	BatchID string      `json:"batch_id"`
	Legs    []LegResult `json:"legs"`
	Spent   int64       `json:"spent"`
	Refund  int64       `json:"refund"`
}

// LegCheck is the pure pre-flight validity report for one leg, produced
// without mutating any state.
type LegCheck struct {
	Leg    WagerLeg  `json:"leg"`
	Valid  bool      `json:"valid"`
	Reason string    `json:"reason,omitempty"`
	Kind   ErrorKind `json:"kind,omitempty"`
}
