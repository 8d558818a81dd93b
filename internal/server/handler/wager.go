package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/omenmarkets/omen/internal/domain"
)

// WagerService defines the methods that the wager handler requires from the
// service layer.
type WagerService interface {
	Buy(ctx context.Context, account, marketID string, option int, amount int64) (domain.Wager, error)
	Sell(ctx context.Context, account, marketID string, option int, shares int64) (domain.Wager, error)
	Batch(ctx context.Context, account string, total int64, legs []domain.WagerLeg) (domain.BatchResult, error)
	Validate(ctx context.Context, legs []domain.WagerLeg) ([]domain.LegCheck, int64)
	Position(ctx context.Context, marketID, account string) (domain.Position, error)
	ListPositions(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Position, error)
	HistoryByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Wager, error)
	HistoryByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Wager, error)
}

// WagerHandler serves wager and position HTTP endpoints.
type WagerHandler struct {
	wagers WagerService
	logger *slog.Logger
}

// NewWagerHandler creates a WagerHandler with the given service and logger.
func NewWagerHandler(wagers WagerService, logger *slog.Logger) *WagerHandler {
	return &WagerHandler{
		wagers: wagers,
		logger: logger,
	}
}

// placeWagerRequest is the JSON body for buying or selling shares. Amount is
// the stake for buys; Shares is the quantity to redeem for sells.
type placeWagerRequest struct {
	Account string `json:"account"`
	Side    string `json:"side"` // "buy" or "sell"
	Option  int    `json:"option"`
	Amount  int64  `json:"amount,omitempty"`
	Shares  int64  `json:"shares,omitempty"`
}

// PlaceWager buys or sells shares in a single market.
// POST /api/markets/{id}/wagers
func (h *WagerHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req placeWagerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	account, ok := accountField(w, "account", req.Account)
	if !ok {
		return
	}

	var (
		wager domain.Wager
		err   error
	)
	switch req.Side {
	case "buy", "":
		wager, err = h.wagers.Buy(r.Context(), account, marketID, req.Option, req.Amount)
	case "sell":
		wager, err = h.wagers.Sell(r.Context(), account, marketID, req.Option, req.Shares)
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: place wager failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wager)
}

// batchRequest is the JSON body for a multi-market batch buy.
type batchRequest struct {
	Account string            `json:"account"`
	Total   int64             `json:"total"`
	Legs    []domain.WagerLeg `json:"legs"`
}

// PlaceBatch executes a best-effort batch of buy legs under a single declared
// total. Individual leg rejections do not fail the batch.
// POST /api/wagers/batch
func (h *WagerHandler) PlaceBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	account, ok := accountField(w, "account", req.Account)
	if !ok {
		return
	}

	result, err := h.wagers.Batch(r.Context(), account, req.Total, req.Legs)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: batch failed",
				slog.String("account", req.Account),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// validateRequest is the JSON body for a dry-run batch check.
type validateRequest struct {
	Legs []domain.WagerLeg `json:"legs"`
}

// validateResponse reports per-leg admissibility and the total stake the
// batch would require.
type validateResponse struct {
	Legs  []domain.LegCheck `json:"legs"`
	Total int64             `json:"total"`
}

// ValidateBatch checks batch legs without mutating any market.
// POST /api/wagers/validate
func (h *WagerHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	checks, total := h.wagers.Validate(r.Context(), req.Legs)
	if checks == nil {
		checks = []domain.LegCheck{}
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Legs:  checks,
		Total: total,
	})
}

// listWagersResponse wraps wager history output.
type listWagersResponse struct {
	Wagers []domain.Wager `json:"wagers"`
}

// ListMarketWagers returns the fill history for a market, newest first.
// GET /api/markets/{id}/wagers
func (h *WagerHandler) ListMarketWagers(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	wagers, err := h.wagers.HistoryByMarket(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market wagers failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if wagers == nil {
		wagers = []domain.Wager{}
	}

	writeJSON(w, http.StatusOK, listWagersResponse{Wagers: wagers})
}

// ListAccountWagers returns the fill history for an account, newest first.
// GET /api/accounts/{account}/wagers
func (h *WagerHandler) ListAccountWagers(w http.ResponseWriter, r *http.Request) {
	account, ok := accountField(w, "account", pathParam(r, "account"))
	if !ok {
		return
	}

	wagers, err := h.wagers.HistoryByAccount(r.Context(), account, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list account wagers failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if wagers == nil {
		wagers = []domain.Wager{}
	}

	writeJSON(w, http.StatusOK, listWagersResponse{Wagers: wagers})
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListAccountPositions returns all positions held by an account.
// GET /api/accounts/{account}/positions
func (h *WagerHandler) ListAccountPositions(w http.ResponseWriter, r *http.Request) {
	account, ok := accountField(w, "account", pathParam(r, "account"))
	if !ok {
		return
	}

	positions, err := h.wagers.ListPositions(r.Context(), account, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns one account's position in one market. Accounts with no
// history get the zero position rather than a 404.
// GET /api/markets/{id}/positions/{account}
func (h *WagerHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	account, ok := accountField(w, "account", pathParam(r, "account"))
	if !ok {
		return
	}

	position, err := h.wagers.Position(r.Context(), marketID, account)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}
