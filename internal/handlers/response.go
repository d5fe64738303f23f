package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"edurag/internal/apperr"
	"edurag/internal/collection"
	"edurag/internal/contextutil"
	"edurag/internal/loader"
	"edurag/internal/service"
	"edurag/internal/uploads"
)

const (
	statusOK      = "ok"
	statusError   = "error"
	statusPartial = "partial"

	kindNotFound = "not_found"
)

// ErrorResponse represents an error response. ErrorKind tells a failed answer apart
// from a legitimate "I don't know".
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, kind, message string) {
	writeJSON(ctx, w, statusCode, ErrorResponse{
		Status:    statusError,
		ErrorKind: kind,
		Error:     message,
		RequestID: contextutil.RequestID(ctx),
	})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "service error", "error", err, "error_kind", kind)
	} else {
		logger.WarnContext(ctx, "request rejected", "error", err, "error_kind", kind)
	}
	writeError(ctx, w, status, kind, err.Error())
}

func classify(err error) (int, string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, collection.ErrInvalidKey),
		errors.Is(err, uploads.ErrInvalidFilename),
		errors.Is(err, loader.ErrUnsupportedFormat):
		return http.StatusBadRequest, apperr.KindValidation
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apperr.Kind(err)
	}

	switch kind := apperr.Kind(err); kind {
	case apperr.KindConfiguration, apperr.KindRetrieval:
		return http.StatusServiceUnavailable, kind
	case apperr.KindGeneration:
		return http.StatusBadGateway, kind
	case apperr.KindIngestion:
		return http.StatusUnprocessableEntity, kind
	default:
		if errors.Is(err, fs.ErrNotExist) {
			return http.StatusNotFound, kindNotFound
		}
		return http.StatusInternalServerError, kind
	}
}
