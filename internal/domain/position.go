package domain

import "time"

// Position is one account's share holdings in one market. Shares is indexed
// by option and mutated only by that account's buys and sells; Claimed is the
// only mutation allowed after the market leaves the active state.
type Position struct {
	MarketID string  `json:"market_id"`
	Account  string  `json:"account"`
	Shares   []int64 `json:"shares"`

	// Staked is the cumulative amount the account paid in; Recovered is the
	// cumulative amount paid back out through sells. Refunds on cancelled
	// markets pay Staked minus Recovered.
	Staked    int64 `json:"staked"`
	Recovered int64 `json:"recovered"`

	Claimed   bool      `json:"claimed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalShares returns the account's shares summed across all options.
func (p Position) TotalShares() int64 {
	var sum int64
	for _, q := range p.Shares {
		sum += q
	}
	return sum
}

// WinningShares returns the account's shares restricted to the winning
// option indices. Indices outside the share vector are ignored.
func (p Position) WinningShares(winners []int) int64 {
	var sum int64
	for _, w := range winners {
		if w >= 0 && w < len(p.Shares) {
			sum += p.Shares[w]
		}
	}
	return sum
}

// RefundableStake returns the stake still recoverable on a cancelled market.
func (p Position) RefundableStake() int64 {
	if p.Recovered >= p.Staked {
		return 0
	}
	return p.Staked - p.Recovered
}
