package domain

import (
	"context"
	"time"
)

// ResolutionStatus tracks an oracle-mediated resolution request.
type ResolutionStatus string

const (
	// ResolutionStatusPending means the liveness window is open (or a
	// dispute is awaiting settlement).
	ResolutionStatusPending ResolutionStatus = "pending"
	// ResolutionStatusSettled means the request finalized the market with
	// the proposed winners.
	ResolutionStatusSettled ResolutionStatus = "settled"
	// ResolutionStatusRejected means a dispute overturned the proposal; the
	// adjudicated outcome was applied instead.
	ResolutionStatusRejected ResolutionStatus = "rejected"
)

// ResolutionRequest is a bonded proposal to resolve a market through the
// optimistic-oracle path. At most one request is live per market.
type ResolutionRequest struct {
	ID               string    `json:"id"`
	MarketID         string    `json:"market_id"`
	Proposer         string    `json:"proposer"`
	ProposedWinners  []int     `json:"proposed_winners"`
	Bond             int64     `json:"bond"`
	LivenessDeadline time.Time `json:"liveness_deadline"`

	Disputed    bool   `json:"disputed"`
	Disputer    string `json:"disputer,omitempty"`
	DisputeBond int64  `json:"dispute_bond,omitempty"`

	Status       ResolutionStatus `json:"status"`
	FinalWinners []int            `json:"final_winners,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	SettledAt    *time.Time       `json:"settled_at,omitempty"`
}

// Adjudicator is the external truth oracle consulted exactly once per
// disputed resolution request.
type Adjudicator interface {
	// Adjudicate returns the final winning option set for the market given
	// the disputed proposal.
	Adjudicate(ctx context.Context, marketID string, proposedWinners []int) ([]int, error)
}

// AdjudicatorFunc adapts a plain function to the Adjudicator interface.
type AdjudicatorFunc func(ctx context.Context, marketID string, proposedWinners []int) ([]int, error)

// Adjudicate implements Adjudicator.
func (f AdjudicatorFunc) Adjudicate(ctx context.Context, marketID string, proposedWinners []int) ([]int, error) {
	return f(ctx, marketID, proposedWinners)
}
