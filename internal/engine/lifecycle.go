package engine

import (
	"github.com/omenmarkets/omen/internal/domain"
)

// Resolve is the creator-attested resolution path: a direct, single-step
// call, legal only after the betting window has closed and while no oracle
// resolution request is pending.
func (e *Engine) Resolve(caller, marketID string, winners []int) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m := ms.market

	if m.Status != domain.MarketStatusActive {
		return nil, domain.ErrMarketClosed
	}
	if caller != m.Creator {
		return nil, domain.ErrUnauthorized
	}
	if e.clock().Before(m.EndTime) {
		return nil, domain.ErrMarketStillOpen
	}
	if _, pending := e.requests[marketID]; pending {
		return nil, domain.ErrResolutionInProgress
	}
	if !m.ValidWinners(winners) {
		return nil, domain.ErrInvalidWinners
	}

	ev := e.resolveLocked(ms, winners)
	return []domain.Event{ev}, nil
}

// Cancel voids the market; all positions become refund-eligible. Only the
// creator may cancel, and only while the market is active with no oracle
// resolution pending.
func (e *Engine) Cancel(caller, marketID string) ([]domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m := &ms.market

	if m.Status != domain.MarketStatusActive {
		return nil, domain.ErrMarketClosed
	}
	if caller != m.Creator {
		return nil, domain.ErrUnauthorized
	}
	if _, pending := e.requests[marketID]; pending {
		return nil, domain.ErrResolutionInProgress
	}

	now := e.clock().UTC()
	m.Status = domain.MarketStatusCancelled
	m.UpdatedAt = now

	return []domain.Event{{
		Type:     domain.EventMarketCancelled,
		MarketID: m.ID,
		Account:  caller,
		Option:   -1,
		At:       now,
	}}, nil
}

// resolveLocked finalizes the market with the given winners, snapshotting
// the payout pool and the total winning shares so claim order cannot change
// any claimant's payout. Callers must hold e.mu and have validated winners.
func (e *Engine) resolveLocked(ms *marketState, winners []int) domain.Event {
	now := e.clock().UTC()
	m := &ms.market

	m.Status = domain.MarketStatusResolved
	m.WinningOptions = append([]int(nil), winners...)
	m.PayoutPool = m.Pool

	var totalWinning int64
	for _, w := range winners {
		totalWinning += m.TotalShares[w]
	}
	m.TotalWinningShares = totalWinning
	m.UpdatedAt = now

	return domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: m.ID,
		Option:   -1,
		Winners:  append([]int(nil), winners...),
		Amount:   m.PayoutPool,
		At:       now,
	}
}
