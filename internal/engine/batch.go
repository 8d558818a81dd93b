package engine

import (
	"github.com/google/uuid"

	"github.com/omenmarkets/omen/internal/domain"
)

// BatchBuy executes a list of wager legs best-effort: each leg is validated
// and executed independently, a failing leg is reported and skipped, and the
// remaining legs still execute. Spent equals the sum of the filled legs
// exactly; the unspent remainder of the declared total is reported back as
// Refund and must be returned to the caller.
func (e *Engine) BatchBuy(account string, total int64, legs []domain.WagerLeg) (domain.BatchResult, []domain.Wager, []domain.Event, error) {
	if account == "" {
		return domain.BatchResult{}, nil, nil, domain.ErrInvalidAccount
	}
	if total < 0 {
		return domain.BatchResult{}, nil, nil, domain.ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	batchID := uuid.New().String()
	result := domain.BatchResult{
		BatchID: batchID,
		Legs:    make([]domain.LegResult, 0, len(legs)),
	}

	var (
		wagers    []domain.Wager
		events    []domain.Event
		remaining = total
	)

	for _, leg := range legs {
		if err := e.checkLegLocked(leg, remaining); err != nil {
			now := e.clock().UTC()
			result.Legs = append(result.Legs, domain.LegResult{
				Leg:    leg,
				Status: domain.LegStatusRejected,
				Reason: err.Error(),
				Kind:   domain.Kind(err),
			})
			events = append(events, domain.Event{
				Type:     domain.EventBatchLegRejected,
				MarketID: leg.MarketID,
				Account:  account,
				Option:   leg.Option,
				Amount:   leg.Amount,
				Reason:   err.Error(),
				Kind:     domain.Kind(err),
				At:       now,
			})
			continue
		}

		ms := e.markets[leg.MarketID]
		w, buyEv := e.buyLocked(ms, account, leg.Option, leg.Amount, batchID)
		remaining -= leg.Amount
		result.Spent += leg.Amount
		wagers = append(wagers, w)

		result.Legs = append(result.Legs, domain.LegResult{
			Leg:    leg,
			Status: domain.LegStatusFilled,
			Shares: w.Shares,
		})
		events = append(events, buyEv, domain.Event{
			Type:     domain.EventBatchLegFilled,
			MarketID: leg.MarketID,
			Account:  account,
			Option:   leg.Option,
			Amount:   leg.Amount,
			Shares:   w.Shares,
			At:       buyEv.At,
		})
	}

	result.Refund = remaining
	return result, wagers, events, nil
}

// ValidateWagers is the pure pre-flight counterpart to BatchBuy: it reports
// per-leg validity and the total amount the valid legs would require,
// without mutating any state or considering caller funds.
func (e *Engine) ValidateWagers(legs []domain.WagerLeg) ([]domain.LegCheck, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	checks := make([]domain.LegCheck, 0, len(legs))
	var total int64

	for _, leg := range legs {
		if err := e.checkLegLocked(leg, -1); err != nil {
			checks = append(checks, domain.LegCheck{
				Leg:    leg,
				Reason: err.Error(),
				Kind:   domain.Kind(err),
			})
			continue
		}
		checks = append(checks, domain.LegCheck{Leg: leg, Valid: true})
		total += leg.Amount
	}

	return checks, total
}

// checkLegLocked validates one batch leg. remaining is the caller's unspent
// declared funds; pass a negative value to skip the funds check (pure
// validation). Callers must hold e.mu.
func (e *Engine) checkLegLocked(leg domain.WagerLeg, remaining int64) error {
	ms, ok := e.markets[leg.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := e.checkBuyLocked(ms, leg.Option, leg.Amount); err != nil {
		return err
	}
	if remaining >= 0 && leg.Amount > remaining {
		return domain.ErrInsufficientFunds
	}
	return nil
}
