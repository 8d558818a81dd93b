package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/omenmarkets/omen/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, creator, question string, options []string, endTime time.Time) (domain.Market, error)
	Get(ctx context.Context, id string) (domain.Market, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64)
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64)
	ListByCreator(ctx context.Context, creator string, opts domain.ListOpts) ([]domain.Market, int64)
	Odds(ctx context.Context, id string) ([]int64, error)
	TimeRemaining(ctx context.Context, id string) (time.Duration, error)
	Resolve(ctx context.Context, caller, id string, winners []int) error
	Cancel(ctx context.Context, caller, id string) error
}

// MarketHandler serves market lifecycle HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the JSON body for creating a market.
type createMarketRequest struct {
	Creator  string    `json:"creator"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	EndTime  time.Time `json:"end_time"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	creator, ok := accountField(w, "creator", req.Creator)
	if !ok {
		return
	}

	market, err := h.markets.Create(r.Context(), creator, req.Question, req.Options, req.EndTime)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create market failed",
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination. By default only active markets
// are returned; ?status=all includes settled ones and ?creator= filters by
// the creating account.
// GET /api/markets?status=all&creator=...&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := r.URL.Query()

	var (
		markets []domain.Market
		total   int64
	)
	switch {
	case q.Get("creator") != "":
		creator, ok := accountField(w, "creator", q.Get("creator"))
		if !ok {
			return
		}
		markets, total = h.markets.ListByCreator(r.Context(), creator, opts)
	case q.Get("status") == "all":
		markets, total = h.markets.List(r.Context(), opts)
	default:
		markets, total = h.markets.ListActive(r.Context(), opts)
	}

	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// oddsResponse carries the current implied odds for every option of a market.
type oddsResponse struct {
	MarketID             string  `json:"market_id"`
	Prices               []int64 `json:"prices"`
	TimeRemainingSeconds int64   `json:"time_remaining_seconds"`
}

// GetOdds returns the implied odds for a market's options, scaled so that a
// certain outcome is 1000000.
// GET /api/markets/{id}/odds
func (h *MarketHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	prices, err := h.markets.Odds(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	remaining, err := h.markets.TimeRemaining(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, oddsResponse{
		MarketID:             id,
		Prices:               prices,
		TimeRemainingSeconds: int64(remaining.Seconds()),
	})
}

// GetTimeRemaining returns the seconds left in a market's betting window,
// zero once the window has closed.
// GET /api/markets/{id}/time-remaining
func (h *MarketHandler) GetTimeRemaining(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	remaining, err := h.markets.TimeRemaining(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":              id,
		"time_remaining_seconds": int64(remaining.Seconds()),
	})
}

// resolveRequest is the JSON body for direct creator resolution.
type resolveRequest struct {
	Caller  string `json:"caller"`
	Winners []int  `json:"winners"`
}

// ResolveMarket resolves a market directly as its creator.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, ok := accountField(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := h.markets.Resolve(r.Context(), caller, id, req.Winners); err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "resolved",
		"market_id": id,
	})
}

// cancelRequest is the JSON body for cancelling a market.
type cancelRequest struct {
	Caller string `json:"caller"`
}

// CancelMarket voids a market so every participant can reclaim their stake.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, ok := accountField(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := h.markets.Cancel(r.Context(), caller, id); err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: cancel market failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "cancelled",
		"market_id": id,
	})
}
