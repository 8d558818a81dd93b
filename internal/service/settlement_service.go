package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
)

// SettlementService handles the exactly-once payout path: pro-rata winnings
// on resolved markets and stake refunds on cancelled ones.
type SettlementService struct {
	engine    *engine.Engine
	markets   domain.MarketStore
	positions domain.PositionStore
	sink      *EventSink
	logger    *slog.Logger
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	eng *engine.Engine,
	markets domain.MarketStore,
	positions domain.PositionStore,
	sink *EventSink,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		engine:    eng,
		markets:   markets,
		positions: positions,
		sink:      sink,
		logger:    logger.With(slog.String("component", "settlement_service")),
	}
}

// Claim pays the account its pro-rata winnings on a resolved market,
// exactly once, and persists the claim.
func (s *SettlementService) Claim(ctx context.Context, account, marketID string) (int64, error) {
	payout, events, err := s.engine.ClaimWinnings(account, marketID)
	if err != nil {
		return 0, err
	}

	if err := s.persist(ctx, marketID, account); err != nil {
		return 0, err
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "winnings claimed",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.Int64("payout", payout),
	)

	return payout, nil
}

// Refund returns the account's remaining stake on a cancelled market,
// exactly once, and persists the refund.
func (s *SettlementService) Refund(ctx context.Context, account, marketID string) (int64, error) {
	refund, events, err := s.engine.ClaimRefund(account, marketID)
	if err != nil {
		return 0, err
	}

	if err := s.persist(ctx, marketID, account); err != nil {
		return 0, err
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "stake refunded",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.Int64("refund", refund),
	)

	return refund, nil
}

// persist writes the post-claim market and position state through to the
// stores.
func (s *SettlementService) persist(ctx context.Context, marketID, account string) error {
	m, err := s.engine.GetMarket(marketID)
	if err != nil {
		return err
	}
	if err := s.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("settlement_service: persist market %s: %w", marketID, err)
	}

	pos, err := s.engine.GetPosition(marketID, account)
	if err != nil {
		return err
	}
	if err := s.positions.Upsert(ctx, pos); err != nil {
		return fmt.Errorf("settlement_service: persist position %s/%s: %w", marketID, account, err)
	}
	return nil
}
