package engine

import (
	"math"

	"github.com/google/uuid"

	"github.com/omenmarkets/omen/internal/domain"
)

// Buy stakes amount micro-units on the given option, minting shares through
// the pricing curve. The caller must have transferred the amount beforehand;
// the engine only accounts for it.
func (e *Engine) Buy(account, marketID string, option int, amount int64) (domain.Wager, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return domain.Wager{}, nil, domain.ErrNotFound
	}
	if err := e.checkBuyLocked(ms, option, amount); err != nil {
		return domain.Wager{}, nil, err
	}

	w, ev := e.buyLocked(ms, account, option, amount, "")
	return w, []domain.Event{ev}, nil
}

// checkBuyLocked validates a buy without mutating state. Callers must hold
// e.mu.
func (e *Engine) checkBuyLocked(ms *marketState, option int, amount int64) error {
	m := ms.market
	if !m.ValidOption(option) {
		return domain.ErrInvalidOption
	}
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if amount > e.cfg.MaxStake {
		return domain.ErrStakeTooLarge
	}
	// Shares mint 1:1 with the stake, so both the pool and the option's
	// share total grow by amount. Reject anything that would wrap int64.
	if amount > math.MaxInt64-m.Pool || amount > math.MaxInt64-m.TotalShares[option] {
		return domain.ErrStakeTooLarge
	}
	if m.Status != domain.MarketStatusActive {
		return domain.ErrMarketClosed
	}
	if !e.clock().Before(m.EndTime) {
		return domain.ErrBettingClosed
	}
	return nil
}

// buyLocked applies a validated buy: ledger credit, pool credit, wager
// record, event. Callers must hold e.mu and have passed checkBuyLocked.
func (e *Engine) buyLocked(ms *marketState, account string, option int, amount int64, batchID string) (domain.Wager, domain.Event) {
	now := e.clock().UTC()
	shares := buyShares(amount)

	pos := ms.position(account)
	pos.Shares[option] += shares
	pos.Staked += amount
	pos.UpdatedAt = now

	ms.market.TotalShares[option] += shares
	ms.market.Pool += amount
	ms.market.UpdatedAt = now

	w := domain.Wager{
		ID:        uuid.New().String(),
		MarketID:  ms.market.ID,
		Account:   account,
		Option:    option,
		Side:      domain.WagerSideBuy,
		Amount:    amount,
		Shares:    shares,
		BatchID:   batchID,
		CreatedAt: now,
	}

	ev := domain.Event{
		Type:     domain.EventSharesBought,
		MarketID: ms.market.ID,
		Account:  account,
		Option:   option,
		Amount:   amount,
		Shares:   shares,
		At:       now,
	}

	return w, ev
}

// Sell burns shares from the caller's position and pays out at the price of
// the post-sale share distribution. The payout is always at most the share
// count burned, so the pool cannot be drained.
func (e *Engine) Sell(account, marketID string, option int, shares int64) (domain.Wager, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return domain.Wager{}, nil, domain.ErrNotFound
	}
	m := &ms.market

	if !m.ValidOption(option) {
		return domain.Wager{}, nil, domain.ErrInvalidOption
	}
	if shares <= 0 {
		return domain.Wager{}, nil, domain.ErrZeroAmount
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Wager{}, nil, domain.ErrMarketClosed
	}
	if !e.clock().Before(m.EndTime) {
		return domain.Wager{}, nil, domain.ErrBettingClosed
	}

	pos, ok := ms.positions[account]
	if !ok || pos.Shares[option] < shares {
		return domain.Wager{}, nil, domain.ErrInsufficientShares
	}

	payout := sellPayout(m.TotalShares[option], m.SumShares(), shares)
	if payout > m.Pool {
		// Unreachable with the constant-sum curve; the call aborts with no
		// partial mutation rather than clamping.
		return domain.Wager{}, nil, domain.ErrInsolvent
	}

	now := e.clock().UTC()
	pos.Shares[option] -= shares
	pos.Recovered += payout
	pos.UpdatedAt = now

	m.TotalShares[option] -= shares
	m.Pool -= payout
	m.UpdatedAt = now

	w := domain.Wager{
		ID:        uuid.New().String(),
		MarketID:  m.ID,
		Account:   account,
		Option:    option,
		Side:      domain.WagerSideSell,
		Amount:    payout,
		Shares:    shares,
		CreatedAt: now,
	}

	events := []domain.Event{{
		Type:     domain.EventSharesSold,
		MarketID: m.ID,
		Account:  account,
		Option:   option,
		Amount:   payout,
		Shares:   shares,
		At:       now,
	}}

	return w, events, nil
}
