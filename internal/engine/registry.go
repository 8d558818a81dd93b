package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omenmarkets/omen/internal/domain"
)

// CreateMarket registers a new market with 2 to 4 fixed outcome options and
// returns it along with the creation event.
func (e *Engine) CreateMarket(creator, question string, options []string, endTime time.Time) (domain.Market, []domain.Event, error) {
	if creator == "" {
		return domain.Market{}, nil, domain.ErrInvalidAccount
	}
	if strings.TrimSpace(question) == "" {
		return domain.Market{}, nil, domain.ErrEmptyQuestion
	}
	if len(options) < domain.MinOptions || len(options) > domain.MaxOptions {
		return domain.Market{}, nil, domain.ErrOptionCount
	}
	for _, label := range options {
		if strings.TrimSpace(label) == "" {
			return domain.Market{}, nil, domain.ErrBlankOption
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock().UTC()
	if !endTime.After(now) {
		return domain.Market{}, nil, domain.ErrEndTimeInPast
	}

	m := domain.Market{
		ID:          uuid.New().String(),
		Creator:     creator,
		Question:    question,
		Options:     append([]string(nil), options...),
		EndTime:     endTime.UTC(),
		Status:      domain.MarketStatusActive,
		TotalShares: make([]int64, len(options)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.markets[m.ID] = &marketState{
		market:    m,
		positions: make(map[string]*domain.Position),
	}
	e.order = append(e.order, m.ID)

	events := []domain.Event{{
		Type:     domain.EventMarketCreated,
		MarketID: m.ID,
		Account:  creator,
		Option:   -1,
		At:       now,
	}}

	return cloneMarket(m), events, nil
}

// ListMarkets returns markets in creation order with pagination, along with
// the stable total count.
func (e *Engine) ListMarkets(opts domain.ListOpts) ([]domain.Market, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked(opts, func(domain.Market) bool { return true })
}

// ListActiveMarkets returns markets still in the active state.
func (e *Engine) ListActiveMarkets(opts domain.ListOpts) ([]domain.Market, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked(opts, func(m domain.Market) bool {
		return m.Status == domain.MarketStatusActive
	})
}

// ListMarketsByCreator returns markets created by the given account.
func (e *Engine) ListMarketsByCreator(creator string, opts domain.ListOpts) ([]domain.Market, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked(opts, func(m domain.Market) bool {
		return m.Creator == creator
	})
}

// Count returns the total number of markets in the registry.
func (e *Engine) Count() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.order))
}

// listLocked walks markets in creation order, applies the filter, and pages
// the result. The returned total counts all matches regardless of paging.
// Callers must hold e.mu.
func (e *Engine) listLocked(opts domain.ListOpts, match func(domain.Market) bool) ([]domain.Market, int64) {
	var (
		out   []domain.Market
		total int64
	)
	skipped := 0
	for _, id := range e.order {
		m := e.markets[id].market
		if !match(m) {
			continue
		}
		total++
		if opts.Offset > 0 && skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			continue
		}
		out = append(out, cloneMarket(m))
	}
	return out, total
}
