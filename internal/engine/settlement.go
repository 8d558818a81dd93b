package engine

import (
	"github.com/omenmarkets/omen/internal/domain"
)

// ClaimWinnings pays the account its pro-rata share of the payout pool
// snapshot, exactly once. The position is marked claimed and the pool
// decremented before the caller performs any external transfer.
func (e *Engine) ClaimWinnings(account, marketID string) (int64, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}
	m := &ms.market

	if m.Status != domain.MarketStatusResolved {
		return 0, nil, domain.ErrMarketNotResolved
	}

	pos, ok := ms.positions[account]
	if !ok {
		return 0, nil, domain.ErrNothingToClaim
	}
	if pos.Claimed {
		return 0, nil, domain.ErrAlreadyClaimed
	}

	winShares := pos.WinningShares(m.WinningOptions)
	if winShares == 0 || m.TotalWinningShares == 0 {
		return 0, nil, domain.ErrNothingToClaim
	}

	payout := mulDiv(m.PayoutPool, winShares, m.TotalWinningShares)
	if payout > m.Pool {
		// The payout pool snapshot bounds the sum of all claims, so this
		// cannot trigger; if it ever did, abort with no partial mutation.
		return 0, nil, domain.ErrInsolvent
	}

	now := e.clock().UTC()
	pos.Claimed = true
	pos.UpdatedAt = now
	m.Pool -= payout
	m.UpdatedAt = now

	events := []domain.Event{{
		Type:     domain.EventWinningsClaimed,
		MarketID: m.ID,
		Account:  account,
		Option:   -1,
		Amount:   payout,
		Shares:   winShares,
		At:       now,
	}}

	return payout, events, nil
}

// ClaimRefund returns the account's remaining stake on a cancelled market:
// the cumulative amount paid in minus anything already recovered through
// sells. Exactly once per account.
func (e *Engine) ClaimRefund(account, marketID string) (int64, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}
	m := &ms.market

	if m.Status != domain.MarketStatusCancelled {
		return 0, nil, domain.ErrMarketNotCancelled
	}

	pos, ok := ms.positions[account]
	if !ok {
		return 0, nil, domain.ErrNothingToRefund
	}
	if pos.Claimed {
		return 0, nil, domain.ErrAlreadyClaimed
	}

	refund := pos.RefundableStake()
	if refund == 0 {
		return 0, nil, domain.ErrNothingToRefund
	}
	if refund > m.Pool {
		return 0, nil, domain.ErrInsolvent
	}

	now := e.clock().UTC()
	pos.Claimed = true
	pos.UpdatedAt = now
	m.Pool -= refund
	m.UpdatedAt = now

	events := []domain.Event{{
		Type:     domain.EventStakeRefunded,
		MarketID: m.ID,
		Account:  account,
		Option:   -1,
		Amount:   refund,
		At:       now,
	}}

	return refund, events, nil
}
