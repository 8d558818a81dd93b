// Package engine implements the prediction market settlement core: the share
// ledger, pricing curve, market state machine, resolution protocols, claims,
// and batch execution. The engine is a process-local, serially executed state
// machine: one mutex guards all state and every exported call is atomic with
// respect to all others. Persistence and event delivery are the caller's
// concern; every mutating call returns the events it produced.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
)

// Clock supplies the current time. Injected so time-gated preconditions
// (betting window, liveness deadline) are testable.
type Clock func() time.Time

// Config holds the engine's tunable parameters.
type Config struct {
	// LivenessWindow is how long an undisputed resolution request must wait
	// before it can settle.
	LivenessWindow time.Duration

	// MinBond is the minimum bond for an oracle resolution request, in
	// micro-units.
	MinBond int64

	// MaxStake caps a single buy or batch leg, in micro-units. Bounding the
	// stake keeps pool and share totals far from int64 overflow.
	MaxStake int64
}

func (c Config) withDefaults() Config {
	if c.LivenessWindow <= 0 {
		c.LivenessWindow = 2 * time.Hour
	}
	if c.MinBond <= 0 {
		c.MinBond = 100 * domain.PriceScale
	}
	if c.MaxStake <= 0 {
		c.MaxStake = 1_000_000_000 * domain.PriceScale
	}
	return c
}

// marketState bundles a market with its positions. Positions are keyed by
// account.
type marketState struct {
	market    domain.Market
	positions map[string]*domain.Position
}

// Engine owns all market state. Construct with New, rehydrate with Restore.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	clock  Clock
	oracle domain.Adjudicator

	markets map[string]*marketState
	order   []string // market ids in creation order, for stable listings

	// requests holds the live oracle resolution request per market, if any.
	requests map[string]*domain.ResolutionRequest

	// bondVault holds posted resolution bonds, separate from market pools.
	bondVault int64
}

// New creates an Engine. oracle may be nil when only creator-attested
// resolution is used; clock defaults to time.Now.
func New(cfg Config, oracle domain.Adjudicator, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		cfg:      cfg.withDefaults(),
		clock:    clock,
		oracle:   oracle,
		markets:  make(map[string]*marketState),
		requests: make(map[string]*domain.ResolutionRequest),
	}
}

// Restore rehydrates the engine from persisted state. It verifies the share
// ledger invariant (positions sum to the market totals per option) and
// refuses to load a corrupt snapshot.
func (e *Engine) Restore(markets []domain.Market, positions []domain.Position, requests []domain.ResolutionRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sorted := make([]domain.Market, len(markets))
	copy(sorted, markets)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	e.markets = make(map[string]*marketState, len(sorted))
	e.order = make([]string, 0, len(sorted))
	e.requests = make(map[string]*domain.ResolutionRequest)

	for _, m := range sorted {
		e.markets[m.ID] = &marketState{
			market:    cloneMarket(m),
			positions: make(map[string]*domain.Position),
		}
		e.order = append(e.order, m.ID)
	}

	for _, p := range positions {
		ms, ok := e.markets[p.MarketID]
		if !ok {
			return fmt.Errorf("engine: restore position for unknown market %s", p.MarketID)
		}
		cp := clonePosition(p)
		ms.positions[p.Account] = &cp
	}

	// Ledger invariant: per option, position shares must sum to the
	// market's outstanding total.
	for _, id := range e.order {
		ms := e.markets[id]
		sums := make([]int64, len(ms.market.Options))
		for _, p := range ms.positions {
			for i, q := range p.Shares {
				sums[i] += q
			}
		}
		for i, want := range ms.market.TotalShares {
			if sums[i] != want {
				return fmt.Errorf("engine: restore ledger mismatch for market %s option %d: positions sum %d, total %d",
					id, i, sums[i], want)
			}
		}
	}

	for _, r := range requests {
		if r.Status != domain.ResolutionStatusPending {
			continue
		}
		if _, ok := e.markets[r.MarketID]; !ok {
			return fmt.Errorf("engine: restore resolution request for unknown market %s", r.MarketID)
		}
		cr := cloneRequest(r)
		e.requests[r.MarketID] = &cr
		e.bondVault += r.Bond + r.DisputeBond
	}

	return nil
}

// GetMarket returns a copy of the market.
func (e *Engine) GetMarket(id string) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(ms.market), nil
}

// GetPosition returns the account's position in the market. Accounts that
// never bet get a zero position, not an error.
func (e *Engine) GetPosition(marketID, account string) (domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	p, ok := ms.positions[account]
	if !ok {
		return domain.Position{
			MarketID: marketID,
			Account:  account,
			Shares:   make([]int64, len(ms.market.Options)),
		}, nil
	}
	return clonePosition(*p), nil
}

// Quote returns the current price vector for the market, at PriceScale
// fixed-point. Prices sum to PriceScale within integer rounding.
func (e *Engine) Quote(marketID string) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return quotePrices(ms.market.TotalShares), nil
}

// TimeRemaining returns the duration until the market's betting window
// closes, or zero once it has.
func (e *Engine) TimeRemaining(marketID string) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return ms.market.TimeRemaining(e.clock()), nil
}

// IsOpenForBetting reports whether the market currently accepts wagers.
func (e *Engine) IsOpenForBetting(marketID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.markets[marketID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return ms.market.IsOpenForBetting(e.clock()), nil
}

// PendingResolution returns the live oracle resolution request for the
// market, or ErrNoResolution when none is pending.
func (e *Engine) PendingResolution(marketID string) (domain.ResolutionRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.markets[marketID]; !ok {
		return domain.ResolutionRequest{}, domain.ErrNotFound
	}
	req, ok := e.requests[marketID]
	if !ok {
		return domain.ResolutionRequest{}, domain.ErrNoResolution
	}
	return cloneRequest(*req), nil
}

// BondVault returns the total of posted resolution bonds currently held.
func (e *Engine) BondVault() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bondVault
}

// position returns the account's position in ms, creating a zero position on
// first use. Callers must hold e.mu.
func (ms *marketState) position(account string) *domain.Position {
	p, ok := ms.positions[account]
	if !ok {
		p = &domain.Position{
			MarketID: ms.market.ID,
			Account:  account,
			Shares:   make([]int64, len(ms.market.Options)),
		}
		ms.positions[account] = p
	}
	return p
}

func cloneMarket(m domain.Market) domain.Market {
	cp := m
	cp.Options = append([]string(nil), m.Options...)
	cp.TotalShares = append([]int64(nil), m.TotalShares...)
	if m.WinningOptions != nil {
		cp.WinningOptions = append([]int(nil), m.WinningOptions...)
	}
	return cp
}

func clonePosition(p domain.Position) domain.Position {
	cp := p
	cp.Shares = append([]int64(nil), p.Shares...)
	return cp
}

func cloneRequest(r domain.ResolutionRequest) domain.ResolutionRequest {
	cp := r
	cp.ProposedWinners = append([]int(nil), r.ProposedWinners...)
	if r.FinalWinners != nil {
		cp.FinalWinners = append([]int(nil), r.FinalWinners...)
	}
	if r.SettledAt != nil {
		t := *r.SettledAt
		cp.SettledAt = &t
	}
	return cp
}
