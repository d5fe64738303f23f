package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"edurag/internal/indexer"
	"edurag/internal/service"
	"edurag/internal/storage"
)

// CollectionHandler serves collection endpoints.
type CollectionHandler struct {
	svc service.Service
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(svc service.Service) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// StatsResponse wraps collection statistics.
//
// swagger:model StatsResponse
type StatsResponse struct {
	Status string                   `json:"status"`
	Stats  *indexer.CollectionStats `json:"stats"`
}

// ChunkResponse wraps one stored chunk.
//
// swagger:model ChunkResponse
type ChunkResponse struct {
	Status string               `json:"status"`
	Chunk  *storage.ChunkRecord `json:"chunk"`
}

// DeleteResponse confirms a collection was removed.
//
// swagger:model DeleteResponse
type DeleteResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
}

// Stats handles GET /api/collections/{collection}/stats.
func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.svc.Stats(ctx, chi.URLParam(r, "collection"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, StatsResponse{Status: statusOK, Stats: stats})
}

// Chunk handles GET /api/collections/{collection}/chunks/{id}.
func (h *CollectionHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chunk, err := h.svc.Chunk(ctx, chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, ChunkResponse{Status: statusOK, Chunk: chunk})
}

// Delete handles DELETE /api/collections/{collection}.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "collection")
	if err := h.svc.DeleteCollection(ctx, name); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, DeleteResponse{Status: statusOK, Collection: name})
}
