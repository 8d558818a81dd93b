package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/omenmarkets/omen/internal/domain"
)

// ResolutionService defines the methods that the resolution handler requires
// from the service layer.
type ResolutionService interface {
	Request(ctx context.Context, proposer, marketID string, winners []int, bond int64) (domain.ResolutionRequest, error)
	Dispute(ctx context.Context, disputer, marketID string, bond int64) (domain.ResolutionRequest, error)
	Settle(ctx context.Context, marketID string) (domain.ResolutionRequest, error)
	Pending(ctx context.Context, marketID string) (domain.ResolutionRequest, error)
}

// ResolutionHandler serves the bonded resolution HTTP endpoints.
type ResolutionHandler struct {
	resolutions ResolutionService
	logger      *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler with the given service and
// logger.
func NewResolutionHandler(resolutions ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolutions: resolutions,
		logger:      logger,
	}
}

// proposeRequest is the JSON body for opening a bonded resolution proposal.
type proposeRequest struct {
	Proposer string `json:"proposer"`
	Winners  []int  `json:"winners"`
	Bond     int64  `json:"bond"`
}

// ProposeResolution opens a bonded resolution proposal for a closed market.
// POST /api/markets/{id}/resolution
func (h *ResolutionHandler) ProposeResolution(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req proposeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	proposer, ok := accountField(w, "proposer", req.Proposer)
	if !ok {
		return
	}

	request, err := h.resolutions.Request(r.Context(), proposer, marketID, req.Winners, req.Bond)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: propose resolution failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// disputeRequest is the JSON body for disputing a pending proposal.
type disputeRequest struct {
	Disputer string `json:"disputer"`
	Bond     int64  `json:"bond"`
}

// DisputeResolution challenges a pending proposal before its liveness
// deadline, escalating the market to the adjudicator.
// POST /api/markets/{id}/resolution/dispute
func (h *ResolutionHandler) DisputeResolution(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req disputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	disputer, ok := accountField(w, "disputer", req.Disputer)
	if !ok {
		return
	}

	request, err := h.resolutions.Dispute(r.Context(), disputer, marketID, req.Bond)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: dispute resolution failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// SettleResolution finalizes a pending resolution request: undisputed
// proposals settle after their liveness window, disputed ones by consulting
// the adjudicator.
// POST /api/markets/{id}/resolution/settle
func (h *ResolutionHandler) SettleResolution(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	request, err := h.resolutions.Settle(r.Context(), marketID)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: settle resolution failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}

// GetResolution returns the pending resolution request for a market.
// GET /api/markets/{id}/resolution
func (h *ResolutionHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	request, err := h.resolutions.Pending(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}
