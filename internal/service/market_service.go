package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
)

// MarketService handles market creation, discovery, pricing, and the
// creator-attested lifecycle transitions.
type MarketService struct {
	engine  *engine.Engine
	markets domain.MarketStore
	cache   domain.MarketCache
	odds    domain.OddsCache
	sink    *EventSink
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
// cache and odds may be nil when Redis is not configured.
func NewMarketService(
	eng *engine.Engine,
	markets domain.MarketStore,
	cache domain.MarketCache,
	odds domain.OddsCache,
	sink *EventSink,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		engine:  eng,
		markets: markets,
		cache:   cache,
		odds:    odds,
		sink:    sink,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// Create registers a new market and persists it.
func (s *MarketService) Create(ctx context.Context, creator, question string, options []string, endTime time.Time) (domain.Market, error) {
	m, events, err := s.engine.CreateMarket(creator, question, options, endTime)
	if err != nil {
		return domain.Market{}, err
	}

	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: persist market %s: %w", m.ID, err)
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.String("creator", m.Creator),
		slog.Int("options", len(m.Options)),
	)

	return m, nil
}

// Get retrieves a market by ID, checking the cache first and falling back to
// the engine on a cache miss.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.engine.GetMarket(id)
	if err != nil {
		return domain.Market{}, err
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, nil
}

// List returns markets in creation order along with the total match count.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64) {
	return s.engine.ListMarkets(opts)
}

// ListActive returns markets still open or awaiting resolution.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64) {
	return s.engine.ListActiveMarkets(opts)
}

// ListByCreator returns markets created by the given account.
func (s *MarketService) ListByCreator(ctx context.Context, creator string, opts domain.ListOpts) ([]domain.Market, int64) {
	return s.engine.ListMarketsByCreator(creator, opts)
}

// Odds returns the current per-option prices for a market, cache-aside.
func (s *MarketService) Odds(ctx context.Context, id string) ([]int64, error) {
	if s.odds != nil {
		if prices, _, err := s.odds.GetOdds(ctx, id); err == nil {
			return prices, nil
		}
	}

	prices, err := s.engine.Quote(id)
	if err != nil {
		return nil, err
	}

	if s.odds != nil {
		if cacheErr := s.odds.SetOdds(ctx, id, prices, time.Now()); cacheErr != nil {
			s.logger.WarnContext(ctx, "odds cache set failed",
				slog.String("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return prices, nil
}

// TimeRemaining returns the duration until the market's betting window
// closes.
func (s *MarketService) TimeRemaining(ctx context.Context, id string) (time.Duration, error) {
	return s.engine.TimeRemaining(id)
}

// Resolve applies the creator-attested resolution path and persists the
// terminal market state.
func (s *MarketService) Resolve(ctx context.Context, caller, id string, winners []int) error {
	events, err := s.engine.Resolve(caller, id, winners)
	if err != nil {
		return err
	}
	return s.finalize(ctx, id, events, "market resolved")
}

// Cancel voids a market and persists the terminal state; all stakes become
// refund-eligible.
func (s *MarketService) Cancel(ctx context.Context, caller, id string) error {
	events, err := s.engine.Cancel(caller, id)
	if err != nil {
		return err
	}
	return s.finalize(ctx, id, events, "market cancelled")
}

// finalize persists a market's post-transition state, drops stale cache
// entries, and emits the transition events.
func (s *MarketService) finalize(ctx context.Context, id string, events []domain.Event, msg string) error {
	m, err := s.engine.GetMarket(id)
	if err != nil {
		return err
	}
	if err := s.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("market_service: persist market %s: %w", id, err)
	}

	s.invalidate(ctx, id)
	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, msg,
		slog.String("market_id", id),
		slog.String("status", string(m.Status)),
	)
	return nil
}

// invalidate drops the market's cache and odds entries. Failures are logged
// only; entries expire on their own.
func (s *MarketService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.odds != nil {
		if err := s.odds.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "odds invalidate failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Count returns the total number of registered markets.
func (s *MarketService) Count(ctx context.Context) int64 {
	return s.engine.Count()
}
