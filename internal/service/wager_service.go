package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
)

// WagerService handles the share ledger write path: buys, sells, and batch
// execution, plus wager history and position reads.
type WagerService struct {
	engine    *engine.Engine
	ledger    domain.LedgerStore
	positions domain.PositionStore
	wagers    domain.WagerStore
	odds      domain.OddsCache
	sink      *EventSink
	logger    *slog.Logger
}

// NewWagerService creates a WagerService with all required dependencies.
func NewWagerService(
	eng *engine.Engine,
	ledger domain.LedgerStore,
	positions domain.PositionStore,
	wagers domain.WagerStore,
	odds domain.OddsCache,
	sink *EventSink,
	logger *slog.Logger,
) *WagerService {
	return &WagerService{
		engine:    eng,
		ledger:    ledger,
		positions: positions,
		wagers:    wagers,
		odds:      odds,
		sink:      sink,
		logger:    logger.With(slog.String("component", "wager_service")),
	}
}

// Buy stakes amount on the given option and persists the resulting ledger
// state.
func (s *WagerService) Buy(ctx context.Context, account, marketID string, option int, amount int64) (domain.Wager, error) {
	w, events, err := s.engine.Buy(account, marketID, option, amount)
	if err != nil {
		return domain.Wager{}, err
	}

	if err := s.persistLedger(ctx, marketID, account, []domain.Wager{w}); err != nil {
		return domain.Wager{}, err
	}

	s.refreshOdds(ctx, marketID)
	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "shares bought",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.Int("option", option),
		slog.Int64("amount", amount),
		slog.Int64("shares", w.Shares),
	)

	return w, nil
}

// Sell burns shares from the account's position and persists the resulting
// ledger state.
func (s *WagerService) Sell(ctx context.Context, account, marketID string, option int, shares int64) (domain.Wager, error) {
	w, events, err := s.engine.Sell(account, marketID, option, shares)
	if err != nil {
		return domain.Wager{}, err
	}

	if err := s.persistLedger(ctx, marketID, account, []domain.Wager{w}); err != nil {
		return domain.Wager{}, err
	}

	s.refreshOdds(ctx, marketID)
	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "shares sold",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.Int("option", option),
		slog.Int64("shares", shares),
		slog.Int64("payout", w.Amount),
	)

	return w, nil
}

// Batch executes a list of wager legs best-effort and persists the filled
// legs. Rejected legs are reported in the result, not as an error.
func (s *WagerService) Batch(ctx context.Context, account string, total int64, legs []domain.WagerLeg) (domain.BatchResult, error) {
	result, wagers, events, err := s.engine.BatchBuy(account, total, legs)
	if err != nil {
		return domain.BatchResult{}, err
	}

	// Persist per market: each market's filled legs commit together with its
	// post-batch ledger state, matching the per-leg transactional boundary.
	byMarket := make(map[string][]domain.Wager, len(wagers))
	var order []string
	for _, w := range wagers {
		if _, ok := byMarket[w.MarketID]; !ok {
			order = append(order, w.MarketID)
		}
		byMarket[w.MarketID] = append(byMarket[w.MarketID], w)
	}
	for _, marketID := range order {
		if err := s.persistLedger(ctx, marketID, account, byMarket[marketID]); err != nil {
			return domain.BatchResult{}, err
		}
		s.refreshOdds(ctx, marketID)
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "batch executed",
		slog.String("batch_id", result.BatchID),
		slog.String("account", account),
		slog.Int("legs", len(legs)),
		slog.Int("filled", len(wagers)),
		slog.Int64("spent", result.Spent),
		slog.Int64("refund", result.Refund),
	)

	return result, nil
}

// Validate reports per-leg validity and the total amount the valid legs
// would require, without executing anything.
func (s *WagerService) Validate(ctx context.Context, legs []domain.WagerLeg) ([]domain.LegCheck, int64) {
	return s.engine.ValidateWagers(legs)
}

// Position returns one account's position in one market. Accounts with no
// position get a zero-valued one.
func (s *WagerService) Position(ctx context.Context, marketID, account string) (domain.Position, error) {
	return s.engine.GetPosition(marketID, account)
}

// ListPositions returns the account's persisted positions across markets.
func (s *WagerService) ListPositions(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByAccount(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list positions for %s: %w", account, err)
	}
	return positions, nil
}

// HistoryByMarket returns a market's persisted wager history, newest first.
func (s *WagerService) HistoryByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Wager, error) {
	wagers, err := s.wagers.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list wagers for market %s: %w", marketID, err)
	}
	return wagers, nil
}

// HistoryByAccount returns an account's persisted wager history, newest first.
func (s *WagerService) HistoryByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Wager, error) {
	wagers, err := s.wagers.ListByAccount(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list wagers for account %s: %w", account, err)
	}
	return wagers, nil
}

// persistLedger commits the current engine state of one market, one account's
// position, and the wagers that produced it in a single store transaction.
func (s *WagerService) persistLedger(ctx context.Context, marketID, account string, wagers []domain.Wager) error {
	m, err := s.engine.GetMarket(marketID)
	if err != nil {
		return err
	}
	pos, err := s.engine.GetPosition(marketID, account)
	if err != nil {
		return err
	}
	if err := s.ledger.ApplyLedger(ctx, m, pos, wagers); err != nil {
		return fmt.Errorf("wager_service: persist ledger %s/%s: %w", marketID, account, err)
	}
	return nil
}

// refreshOdds recomputes and caches the market's quote after a ledger
// mutation. Failures are logged only.
func (s *WagerService) refreshOdds(ctx context.Context, marketID string) {
	if s.odds == nil {
		return
	}
	prices, err := s.engine.Quote(marketID)
	if err != nil {
		return
	}
	if err := s.odds.SetOdds(ctx, marketID, prices, time.Now()); err != nil {
		s.logger.WarnContext(ctx, "odds cache set failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
