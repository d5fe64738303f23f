package handlers

import (
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/contextutil"
	"edurag/internal/indexer"
	"edurag/internal/service"
	"edurag/internal/uploads"
)

// maxUploadMemory is the part of a multipart upload kept in memory; the rest spills to disk.
const maxUploadMemory = 32 << 20

// UploadHandler stores multipart uploads in a collection's directory.
type UploadHandler struct {
	svc     service.Service
	uploads *uploads.Manager
	maxSize int64
}

// NewUploadHandler creates a new UploadHandler. maxSize bounds the request body in bytes.
func NewUploadHandler(svc service.Service, uploadsManager *uploads.Manager, maxSize int64) *UploadHandler {
	return &UploadHandler{svc: svc, uploads: uploadsManager, maxSize: maxSize}
}

// UploadResponse lists stored files and, when requested, the ingestion report.
//
// swagger:model UploadResponse
type UploadResponse struct {
	Status string              `json:"status"`
	Files  []uploads.SavedFile `json:"files"`
	Report *indexer.Report     `json:"report,omitempty"`
}

// ServeHTTP handles multipart uploads. Form fields: collection, one or more file parts
// named "files". Pass ?ingest=true to ingest the stored files right away.
//
// swagger:route POST /api/upload uploadDocuments
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if h.maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "Invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	collectionName := r.FormValue("collection")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(ctx, w, http.StatusBadRequest, apperr.KindValidation, "At least one file is required")
		return
	}

	saved := make([]uploads.SavedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			handleServiceError(ctx, w, err)
			return
		}
		file, err := h.uploads.Save(ctx, collectionName, fh.Filename, f)
		_ = f.Close()
		if err != nil {
			handleServiceError(ctx, w, err)
			return
		}
		logger.InfoContext(ctx, "file uploaded", "collection", file.Collection, "file", file.Name, "size", file.Size)
		saved = append(saved, file)
	}

	resp := UploadResponse{Status: statusOK, Files: saved}
	if r.URL.Query().Get("ingest") == "true" {
		paths := make([]string, len(saved))
		for i, f := range saved {
			paths[i] = f.Path
		}
		report, err := h.svc.Ingest(ctx, service.IngestRequest{Collection: collectionName, Paths: paths})
		if err != nil && len(report.Documents) == 0 {
			handleServiceError(ctx, w, err)
			return
		}
		resp.Report = &report
		if report.Failed > 0 {
			resp.Status = statusPartial
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
