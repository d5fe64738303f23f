package handlers

import (
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/contextutil"
	"edurag/internal/service"
)

// SummarizeHandler produces summaries of ingested sources.
type SummarizeHandler struct {
	svc            service.Service
	defaultBackend string
}

// NewSummarizeHandler creates a new SummarizeHandler.
func NewSummarizeHandler(svc service.Service, defaultBackend string) *SummarizeHandler {
	return &SummarizeHandler{svc: svc, defaultBackend: defaultBackend}
}

// SummarizeRequest names the sources to summarize.
//
// swagger:model SummarizeRequest
type SummarizeRequest struct {
	Collection   string   `json:"collection"`
	Sources      []string `json:"sources"`
	Backend      string   `json:"backend,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// SummarizeResponse carries the summary.
//
// swagger:model SummarizeResponse
type SummarizeResponse struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
}

// ServeHTTP handles summary requests.
//
// swagger:route POST /api/summarize summarizeSources
func (h *SummarizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SummarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "Invalid request body")
		return
	}
	if req.Backend == "" {
		req.Backend = h.defaultBackend
	}

	resp, err := h.svc.Summarize(ctx, service.SummarizeRequest{
		Collection:   req.Collection,
		Sources:      req.Sources,
		Backend:      req.Backend,
		Instructions: req.Instructions,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, SummarizeResponse{Status: statusOK, Summary: resp.Summary, Cached: resp.Cached})
}
