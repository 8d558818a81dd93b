package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omenmarkets/omen/internal/server"
	"github.com/omenmarkets/omen/internal/server/handler"
	"github.com/omenmarkets/omen/internal/server/ws"
	"github.com/omenmarkets/omen/internal/service"
)

// services bundles the service layer built on top of the wired dependencies.
type services struct {
	sink        *service.EventSink
	markets     *service.MarketService
	wagers      *service.WagerService
	resolutions *service.ResolutionService
	settlements *service.SettlementService
}

// buildServices constructs the service layer shared by all modes.
func (a *App) buildServices(deps *Dependencies) *services {
	sink := service.NewEventSink(deps.SignalBus, deps.AuditStore, deps.Notifier, a.logger)

	return &services{
		sink: sink,
		markets: service.NewMarketService(
			deps.Engine, deps.MarketStore, deps.MarketCache, deps.OddsCache, sink, a.logger,
		),
		wagers: service.NewWagerService(
			deps.Engine, deps.LedgerStore, deps.PositionStore, deps.WagerStore,
			deps.OddsCache, sink, a.logger,
		),
		resolutions: service.NewResolutionService(
			deps.Engine, deps.MarketStore, deps.ResolutionStore, deps.LockManager, sink, a.logger,
		),
		settlements: service.NewSettlementService(
			deps.Engine, deps.MarketStore, deps.PositionStore, sink, a.logger,
		),
	}
}

// ServeMode runs the HTTP API, the WebSocket event feed, and the background
// resolution settler.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startSettler(ctx, g, svcs)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// ArchiveMode runs only the periodic cold-storage archiver. It is intended
// for a dedicated maintenance instance running next to a serve fleet.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything in one process: HTTP API, WebSocket feed,
// background settler, and the archiver when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startSettler(ctx, g, svcs)
	if a.cfg.Archive.Enabled {
		a.startArchiver(ctx, g, deps)
	}
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// startSettler adds the background resolution sweep goroutine to the group.
func (a *App) startSettler(ctx context.Context, g *errgroup.Group, svcs *services) {
	interval := a.cfg.Engine.SettleInterval.Duration
	g.Go(func() error {
		svcs.resolutions.RunSettler(ctx, interval)
		return ctx.Err()
	})
}

// startArchiver adds the periodic archival goroutine to the group. Each tick
// uploads settled markets and wagers older than the retention cutoff.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive enabled but no archiver wired, skipping")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)

				n, err := deps.Archiver.ArchiveSettledMarkets(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "market archival failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "archived settled markets",
						slog.Int64("count", n),
					)
				}

				n, err = deps.Archiver.ArchiveWagers(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "wager archival failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "archived wagers",
						slog.Int64("count", n),
					)
				}
			}
		}
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// group. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          deps.AdminAPIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Markets:     handler.NewMarketHandler(svcs.markets, a.logger),
		Wagers:      handler.NewWagerHandler(svcs.wagers, a.logger),
		Resolutions: handler.NewResolutionHandler(svcs.resolutions, a.logger),
		Settlements: handler.NewSettlementHandler(svcs.settlements, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
