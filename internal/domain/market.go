// Package domain defines the core types, errors, and persistence interfaces
// for the omen prediction market engine.
package domain

import "time"

// MarketStatus represents the lifecycle state of a market. Transitions are
// one-way: Active -> Resolved or Active -> Cancelled, never reversed.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

const (
	// MinOptions and MaxOptions bound the number of outcomes per market.
	MinOptions = 2
	MaxOptions = 4

	// PriceScale is the fixed-point scale for prices and unit amounts.
	// A price of 1_000_000 means probability 1; amounts and shares are
	// micro-units of the native asset.
	PriceScale int64 = 1_000_000
)

// Market is a multi-outcome prediction market. TotalShares and Pool are the
// only market-wide mutable state; both are maintained exclusively by the
// engine under its serialization lock.
type Market struct {
	ID       string       `json:"id"`
	Creator  string       `json:"creator"`
	Question string       `json:"question"`
	Options  []string     `json:"options"`
	EndTime  time.Time    `json:"end_time"`
	Status   MarketStatus `json:"status"`

	// WinningOptions is non-empty only when Status is resolved. More than
	// one index is allowed for split outcomes.
	WinningOptions []int `json:"winning_options,omitempty"`

	// TotalShares holds outstanding shares per option, in micro-units.
	TotalShares []int64 `json:"total_shares"`

	// Pool is the value held by the market in micro-units. It only
	// decreases through sells, claims, and refunds.
	Pool int64 `json:"pool"`

	// PayoutPool and TotalWinningShares are snapshots taken at resolution
	// so claim order cannot change any claimant's payout.
	PayoutPool         int64 `json:"payout_pool,omitempty"`
	TotalWinningShares int64 `json:"total_winning_shares,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidOption reports whether idx addresses one of the market's options.
func (m Market) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(m.Options)
}

// ValidWinners reports whether winners is a non-empty set of valid,
// non-repeating option indices.
func (m Market) ValidWinners(winners []int) bool {
	if len(winners) == 0 || len(winners) > len(m.Options) {
		return false
	}
	seen := make(map[int]bool, len(winners))
	for _, w := range winners {
		if !m.ValidOption(w) || seen[w] {
			return false
		}
		seen[w] = true
	}
	return true
}

// IsOpenForBetting reports whether buys and sells are legal at the given
// instant.
func (m Market) IsOpenForBetting(now time.Time) bool {
	return m.Status == MarketStatusActive && now.Before(m.EndTime)
}

// TimeRemaining returns the duration until the betting window closes, or
// zero once it has.
func (m Market) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(m.EndTime) {
		return 0
	}
	return m.EndTime.Sub(now)
}

// SumShares returns the total outstanding shares across all options.
func (m Market) SumShares() int64 {
	var sum int64
	for _, q := range m.TotalShares {
		sum += q
	}
	return sum
}
