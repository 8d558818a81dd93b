package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/server/handler"
	"github.com/omenmarkets/omen/internal/server/middleware"
	"github.com/omenmarkets/omen/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, admin authentication is disabled
	RateLimitPerMin int    // if zero, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Wagers      *handler.WagerHandler
	Resolutions *handler.ResolutionHandler
	Settlements *handler.SettlementHandler
}

// Server is the HTTP + WebSocket API front end for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, logging, CORS) applied. Admin routes
// additionally require the configured API key. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	admin := middleware.Auth(cfg.APIKey)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.GetOdds)
	mux.HandleFunc("GET /api/markets/{id}/time-remaining", handlers.Markets.GetTimeRemaining)
	mux.Handle("POST /api/markets/{id}/resolve", admin(http.HandlerFunc(handlers.Markets.ResolveMarket)))
	mux.Handle("POST /api/markets/{id}/cancel", admin(http.HandlerFunc(handlers.Markets.CancelMarket)))

	// Wagers and positions.
	mux.HandleFunc("POST /api/markets/{id}/wagers", handlers.Wagers.PlaceWager)
	mux.HandleFunc("GET /api/markets/{id}/wagers", handlers.Wagers.ListMarketWagers)
	mux.HandleFunc("POST /api/wagers/batch", handlers.Wagers.PlaceBatch)
	mux.HandleFunc("POST /api/wagers/validate", handlers.Wagers.ValidateBatch)
	mux.HandleFunc("GET /api/markets/{id}/positions/{account}", handlers.Wagers.GetPosition)
	mux.HandleFunc("GET /api/accounts/{account}/positions", handlers.Wagers.ListAccountPositions)
	mux.HandleFunc("GET /api/accounts/{account}/wagers", handlers.Wagers.ListAccountWagers)

	// Bonded resolution.
	mux.HandleFunc("GET /api/markets/{id}/resolution", handlers.Resolutions.GetResolution)
	mux.HandleFunc("POST /api/markets/{id}/resolution", handlers.Resolutions.ProposeResolution)
	mux.HandleFunc("POST /api/markets/{id}/resolution/dispute", handlers.Resolutions.DisputeResolution)
	mux.HandleFunc("POST /api/markets/{id}/resolution/settle", handlers.Resolutions.SettleResolution)

	// Payouts.
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Settlements.Claim)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Settlements.Refund)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
