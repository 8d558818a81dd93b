package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// SettlementService defines the methods that the settlement handler requires
// from the service layer.
type SettlementService interface {
	Claim(ctx context.Context, account, marketID string) (int64, error)
	Refund(ctx context.Context, account, marketID string) (int64, error)
}

// SettlementHandler serves the payout HTTP endpoints.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler with the given service and
// logger.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger,
	}
}

// accountRequest is the JSON body for claim and refund calls.
type accountRequest struct {
	Account string `json:"account"`
}

// payoutResponse reports how much an account received.
type payoutResponse struct {
	MarketID string `json:"market_id"`
	Account  string `json:"account"`
	Amount   int64  `json:"amount"`
}

// Claim pays out an account's winning shares in a resolved market.
// POST /api/markets/{id}/claim
func (h *SettlementHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, "claim", h.settlements.Claim)
}

// Refund returns an account's outstanding stake in a cancelled market.
// POST /api/markets/{id}/refund
func (h *SettlementHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, "refund", h.settlements.Refund)
}

func (h *SettlementHandler) payout(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, account, marketID string) (int64, error),
) {
	marketID := pathParam(r, "id")

	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	account, ok := accountField(w, "account", req.Account)
	if !ok {
		return
	}

	amount, err := fn(r.Context(), account, marketID)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
				slog.String("market_id", marketID),
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payoutResponse{
		MarketID: marketID,
		Account:  account,
		Amount:   amount,
	})
}
