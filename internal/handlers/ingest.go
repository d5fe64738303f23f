package handlers

import (
	"context"
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/contextutil"
	"edurag/internal/indexer"
	"edurag/internal/service"
	"edurag/internal/uploads"
)

// IngestHandler handles HTTP requests for ingesting uploaded documents.
type IngestHandler struct {
	svc     service.Service
	uploads *uploads.Manager
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(svc service.Service, uploadsManager *uploads.Manager) *IngestHandler {
	return &IngestHandler{svc: svc, uploads: uploadsManager}
}

// IngestRequest names uploaded files of a collection to ingest.
// With no files, every supported file in the collection's upload directory is ingested.
//
// swagger:model IngestRequest
type IngestRequest struct {
	Collection string   `json:"collection"`
	Files      []string `json:"files,omitempty"`
	WindowSize int      `json:"window_size,omitempty"`
	// Overlap of 0 disables overlap; omit it to use the configured value.
	Overlap *int `json:"overlap,omitempty"`
}

// IngestResponse reports per-document ingestion results.
//
// swagger:model IngestResponse
type IngestResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Report    *indexer.Report `json:"report,omitempty"`
}

// ServeHTTP handles HTTP requests for ingestion.
//
// swagger:route POST /api/ingest ingestDocuments
//
// Pass ?async=true to return 202 immediately and ingest in the background.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "Invalid request body")
		return
	}

	paths, err := h.resolve(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if len(paths) == 0 {
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "No documents to ingest")
		return
	}

	svcReq := service.IngestRequest{
		Collection: req.Collection,
		Paths:      paths,
		WindowSize: req.WindowSize,
		Overlap:    req.Overlap,
	}

	if r.URL.Query().Get("async") == "true" {
		// Keep ingesting after the HTTP request completes
		go func() {
			ingestCtx := context.WithoutCancel(ctx)
			if _, err := h.svc.Ingest(ingestCtx, svcReq); err != nil {
				logger.ErrorContext(ingestCtx, "background ingestion completed with errors", "error", err)
				return
			}
			logger.InfoContext(ingestCtx, "background ingestion completed successfully")
		}()
		writeJSON(ctx, w, http.StatusAccepted, IngestResponse{
			Status:  "accepted",
			Message: "Ingestion started. Check server logs for progress.",
		})
		return
	}

	report, err := h.svc.Ingest(ctx, svcReq)
	if err != nil && len(report.Documents) == 0 {
		handleServiceError(ctx, w, err)
		return
	}

	resp := IngestResponse{Status: statusOK, Report: &report}
	statusCode := http.StatusOK
	switch {
	case report.Failed > 0 && report.Succeeded == 0:
		resp.Status = statusError
		resp.ErrorKind = apperr.KindIngestion
		statusCode = http.StatusUnprocessableEntity
	case report.Failed > 0:
		resp.Status = statusPartial
		resp.ErrorKind = apperr.KindIngestion
	}
	writeJSON(ctx, w, statusCode, resp)
}

func (h *IngestHandler) resolve(ctx context.Context, req IngestRequest) ([]string, error) {
	if len(req.Files) > 0 {
		return h.uploads.Resolve(req.Collection, req.Files)
	}
	files, err := h.uploads.Scan(ctx, req.Collection)
	if err != nil {
		return nil, err
	}
	return uploads.Paths(files), nil
}
