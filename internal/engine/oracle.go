package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/omenmarkets/omen/internal/domain"
)

// RequestResolution opens the oracle-mediated resolution path: any party may
// propose a winner set after the betting window closes, posting a bond that
// opens a fixed liveness window. At most one request may be live per market.
func (e *Engine) RequestResolution(proposer, marketID string, winners []int, bond int64) (domain.ResolutionRequest, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return domain.ResolutionRequest{}, nil, domain.ErrNotFound
	}
	m := ms.market

	if m.Status != domain.MarketStatusActive {
		return domain.ResolutionRequest{}, nil, domain.ErrMarketClosed
	}
	now := e.clock()
	if now.Before(m.EndTime) {
		return domain.ResolutionRequest{}, nil, domain.ErrMarketStillOpen
	}
	if _, pending := e.requests[marketID]; pending {
		return domain.ResolutionRequest{}, nil, domain.ErrResolutionInProgress
	}
	if !m.ValidWinners(winners) {
		return domain.ResolutionRequest{}, nil, domain.ErrInvalidWinners
	}
	if bond < e.cfg.MinBond {
		return domain.ResolutionRequest{}, nil, domain.ErrInsufficientBond
	}

	req := domain.ResolutionRequest{
		ID:               uuid.New().String(),
		MarketID:         marketID,
		Proposer:         proposer,
		ProposedWinners:  append([]int(nil), winners...),
		Bond:             bond,
		LivenessDeadline: now.UTC().Add(e.cfg.LivenessWindow),
		Status:           domain.ResolutionStatusPending,
		CreatedAt:        now.UTC(),
	}
	e.requests[marketID] = &req
	e.bondVault += bond

	events := []domain.Event{{
		Type:     domain.EventResolutionRequested,
		MarketID: marketID,
		Account:  proposer,
		Option:   -1,
		Winners:  append([]int(nil), winners...),
		Amount:   bond,
		At:       now.UTC(),
	}}

	return cloneRequest(req), events, nil
}

// Dispute challenges a pending resolution request before its liveness
// deadline. The disputer must post a bond at least equal to the proposer's.
func (e *Engine) Dispute(disputer, marketID string, bond int64) (domain.ResolutionRequest, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.markets[marketID]; !ok {
		return domain.ResolutionRequest{}, nil, domain.ErrNotFound
	}
	req, ok := e.requests[marketID]
	if !ok {
		return domain.ResolutionRequest{}, nil, domain.ErrNoResolution
	}
	if req.Disputed {
		return domain.ResolutionRequest{}, nil, domain.ErrAlreadyDisputed
	}
	now := e.clock()
	if !now.Before(req.LivenessDeadline) {
		return domain.ResolutionRequest{}, nil, domain.ErrLivenessElapsed
	}
	if bond < req.Bond {
		return domain.ResolutionRequest{}, nil, domain.ErrInsufficientBond
	}

	req.Disputed = true
	req.Disputer = disputer
	req.DisputeBond = bond
	e.bondVault += bond

	events := []domain.Event{{
		Type:     domain.EventResolutionDisputed,
		MarketID: marketID,
		Account:  disputer,
		Option:   -1,
		Amount:   bond,
		At:       now.UTC(),
	}}

	return cloneRequest(*req), events, nil
}

// Settle finalizes a pending resolution request. Undisputed requests settle
// with the proposed winners once the liveness deadline has passed, refunding
// the proposer's bond. Disputed requests consult the adjudicator exactly
// once: the losing side's bond is forfeited to the winning side, and the
// adjudicated outcome is applied to the market.
func (e *Engine) Settle(ctx context.Context, marketID string) (domain.ResolutionRequest, []domain.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return domain.ResolutionRequest{}, nil, domain.ErrNotFound
	}
	req, ok := e.requests[marketID]
	if !ok {
		return domain.ResolutionRequest{}, nil, domain.ErrNoResolution
	}

	now := e.clock()
	var (
		final      []int
		bondWinner string
		bondReturn int64
	)

	if !req.Disputed {
		if now.Before(req.LivenessDeadline) {
			return domain.ResolutionRequest{}, nil, domain.ErrLivenessNotElapsed
		}
		final = req.ProposedWinners
		req.Status = domain.ResolutionStatusSettled
		bondWinner = req.Proposer
		bondReturn = req.Bond
	} else {
		if e.oracle == nil {
			return domain.ResolutionRequest{}, nil, fmt.Errorf("engine: settle market %s: no adjudicator configured", marketID)
		}
		adjudicated, err := e.oracle.Adjudicate(ctx, marketID, req.ProposedWinners)
		if err != nil {
			return domain.ResolutionRequest{}, nil, fmt.Errorf("engine: adjudicate market %s: %w", marketID, err)
		}
		if !ms.market.ValidWinners(adjudicated) {
			return domain.ResolutionRequest{}, nil, fmt.Errorf("engine: adjudicate market %s: %w", marketID, domain.ErrInvalidWinners)
		}
		final = adjudicated

		if equalWinners(adjudicated, req.ProposedWinners) {
			req.Status = domain.ResolutionStatusSettled
			bondWinner = req.Proposer
		} else {
			req.Status = domain.ResolutionStatusRejected
			bondWinner = req.Disputer
		}
		bondReturn = req.Bond + req.DisputeBond
	}

	e.bondVault -= bondReturn

	settledAt := now.UTC()
	req.FinalWinners = append([]int(nil), final...)
	req.SettledAt = &settledAt
	delete(e.requests, marketID)

	resolved := e.resolveLocked(ms, final)

	events := []domain.Event{
		{
			Type:     domain.EventResolutionSettled,
			MarketID: marketID,
			Account:  bondWinner,
			Option:   -1,
			Winners:  append([]int(nil), final...),
			Amount:   bondReturn,
			At:       settledAt,
		},
		resolved,
	}

	return cloneRequest(*req), events, nil
}

// equalWinners compares two winner sets ignoring order.
func equalWinners(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
