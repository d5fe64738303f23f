package handlers

import (
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/contextutil"
	"edurag/internal/rag"
	"edurag/internal/service"
)

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	svc            service.Service
	defaultBackend string
}

// NewAskHandler creates a new AskHandler. defaultBackend is used when a request names none.
func NewAskHandler(svc service.Service, defaultBackend string) *AskHandler {
	return &AskHandler{svc: svc, defaultBackend: defaultBackend}
}

// AskRequest represents the HTTP request payload for RAG queries.
//
// swagger:model AskRequest
type AskRequest struct {
	Collection string `json:"collection"`
	Question   string `json:"question"`
	Backend    string `json:"backend,omitempty"`
}

// AskResponse represents the HTTP response payload for RAG queries.
//
// swagger:model AskResponse
type AskResponse struct {
	Status string `json:"status"`
	// The generated answer, or the fixed no-context answer
	Answer string `json:"answer"`
	// NoContext is set when nothing was retrieved and no model was called.
	NoContext bool `json:"no_context,omitempty"`
	// Sources used to answer, in ranked order
	Sources []SourceResponse `json:"sources"`
}

// SourceResponse is one retrieved chunk.
//
// swagger:model SourceResponse
type SourceResponse struct {
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"`
	Page       int     `json:"page,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

func toSourceResponses(sources []rag.Source) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i, s := range sources {
		out[i] = SourceResponse{
			ChunkID:    s.ID,
			Source:     s.SourceID,
			Page:       s.Page,
			ChunkIndex: s.Index,
			Score:      s.Score,
			Text:       s.Text,
		}
	}
	return out
}

// ServeHTTP handles HTTP requests for RAG queries.
//
// swagger:route POST /api/ask askQuestion
//
// # Ask a question about a collection
//
// responses:
//
//	'200': AskResponse
//	'400': ErrorResponse
//	'502': ErrorResponse
//	'503': ErrorResponse
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "Invalid request body")
		return
	}
	if req.Backend == "" {
		req.Backend = h.defaultBackend
	}

	answer, err := h.svc.Ask(ctx, service.AskRequest{
		Collection: req.Collection,
		Question:   req.Question,
		Backend:    req.Backend,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Status:    statusOK,
		Answer:    answer.Text,
		NoContext: answer.NoContext,
		Sources:   toSourceResponses(answer.Sources),
	})
}
