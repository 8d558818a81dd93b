package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
)

// settleLockTTL bounds how long a settle sweep may hold a market's
// distributed lock.
const settleLockTTL = 30 * time.Second

// ResolutionService drives the oracle-mediated resolution path: bonded
// proposals, disputes, and settlement, including the background sweep that
// settles requests whose liveness window has elapsed.
type ResolutionService struct {
	engine      *engine.Engine
	markets     domain.MarketStore
	resolutions domain.ResolutionStore
	locks       domain.LockManager
	sink        *EventSink
	logger      *slog.Logger
}

// NewResolutionService creates a ResolutionService with all required
// dependencies. locks may be nil when running a single instance.
func NewResolutionService(
	eng *engine.Engine,
	markets domain.MarketStore,
	resolutions domain.ResolutionStore,
	locks domain.LockManager,
	sink *EventSink,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		engine:      eng,
		markets:     markets,
		resolutions: resolutions,
		locks:       locks,
		sink:        sink,
		logger:      logger.With(slog.String("component", "resolution_service")),
	}
}

// Request opens a bonded resolution proposal for a market.
func (s *ResolutionService) Request(ctx context.Context, proposer, marketID string, winners []int, bond int64) (domain.ResolutionRequest, error) {
	req, events, err := s.engine.RequestResolution(proposer, marketID, winners, bond)
	if err != nil {
		return domain.ResolutionRequest{}, err
	}

	if err := s.resolutions.Create(ctx, req); err != nil {
		return domain.ResolutionRequest{}, fmt.Errorf("resolution_service: persist request %s: %w", req.ID, err)
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "resolution requested",
		slog.String("market_id", marketID),
		slog.String("proposer", proposer),
		slog.Int64("bond", bond),
	)

	return req, nil
}

// Dispute challenges a pending resolution request before its liveness
// deadline.
func (s *ResolutionService) Dispute(ctx context.Context, disputer, marketID string, bond int64) (domain.ResolutionRequest, error) {
	req, events, err := s.engine.Dispute(disputer, marketID, bond)
	if err != nil {
		return domain.ResolutionRequest{}, err
	}

	if err := s.resolutions.Update(ctx, req); err != nil {
		return domain.ResolutionRequest{}, fmt.Errorf("resolution_service: persist dispute %s: %w", req.ID, err)
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "resolution disputed",
		slog.String("market_id", marketID),
		slog.String("disputer", disputer),
		slog.Int64("bond", bond),
	)

	return req, nil
}

// Settle finalizes a pending resolution request and persists the terminal
// market state.
func (s *ResolutionService) Settle(ctx context.Context, marketID string) (domain.ResolutionRequest, error) {
	req, events, err := s.engine.Settle(ctx, marketID)
	if err != nil {
		return domain.ResolutionRequest{}, err
	}

	if err := s.resolutions.Update(ctx, req); err != nil {
		return domain.ResolutionRequest{}, fmt.Errorf("resolution_service: persist settle %s: %w", req.ID, err)
	}

	m, err := s.engine.GetMarket(marketID)
	if err != nil {
		return domain.ResolutionRequest{}, err
	}
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.ResolutionRequest{}, fmt.Errorf("resolution_service: persist market %s: %w", marketID, err)
	}

	s.sink.Emit(ctx, events...)
	s.logger.InfoContext(ctx, "resolution settled",
		slog.String("market_id", marketID),
		slog.String("status", string(req.Status)),
	)

	return req, nil
}

// Pending returns the live resolution request for a market, if any.
func (s *ResolutionService) Pending(ctx context.Context, marketID string) (domain.ResolutionRequest, error) {
	return s.engine.PendingResolution(marketID)
}

// SettleDue sweeps pending resolution requests and settles every one that is
// ready: disputed requests immediately, undisputed ones once their liveness
// deadline has passed. It returns the number of requests settled.
func (s *ResolutionService) SettleDue(ctx context.Context) (int, error) {
	pending, err := s.resolutions.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolution_service: list pending: %w", err)
	}

	var settled int
	for _, req := range pending {
		if !req.Disputed && time.Now().Before(req.LivenessDeadline) {
			continue
		}

		if err := s.settleOne(ctx, req.MarketID); err != nil {
			// ErrLivenessNotElapsed races are benign; a later sweep retries.
			if errors.Is(err, domain.ErrLivenessNotElapsed) || errors.Is(err, domain.ErrLockHeld) {
				continue
			}
			s.logger.ErrorContext(ctx, "settle sweep failed",
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++
	}

	return settled, nil
}

// settleOne settles a single market under its distributed lock so replicas
// do not race each other.
func (s *ResolutionService) settleOne(ctx context.Context, marketID string) error {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
		if err != nil {
			return err
		}
		defer unlock()
	}

	_, err := s.Settle(ctx, marketID)
	return err
}

// RunSettler periodically sweeps pending requests until the context is
// cancelled. Intended to run in its own goroutine alongside the server.
func (s *ResolutionService) RunSettler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "settler started",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "settler stopped")
			return
		case <-ticker.C:
			n, err := s.SettleDue(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "settle sweep error",
					slog.String("error", err.Error()),
				)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "settle sweep complete",
					slog.Int("settled", n),
				)
			}
		}
	}
}
