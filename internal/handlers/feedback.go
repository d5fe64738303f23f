package handlers

import (
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/contextutil"
	"edurag/internal/service"
)

// FeedbackHandler records votes on retrieved chunks.
type FeedbackHandler struct {
	svc service.Service
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(svc service.Service) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

// FeedbackRequest is one vote.
//
// swagger:model FeedbackRequest
type FeedbackRequest struct {
	ChunkID   string `json:"chunk_id"`
	Direction string `json:"direction"`
}

// StatusResponse is returned by endpoints with nothing else to report.
type StatusResponse struct {
	Status string `json:"status"`
}

// ServeHTTP handles feedback votes.
//
// swagger:route POST /api/feedback recordFeedback
func (h *FeedbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "Invalid request body")
		return
	}

	if err := h.svc.RecordFeedback(ctx, service.FeedbackRequest{ChunkID: req.ChunkID, Direction: req.Direction}); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, StatusResponse{Status: statusOK})
}
