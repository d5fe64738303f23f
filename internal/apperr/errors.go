package apperr

import (
	"errors"
	"fmt"
)

// Kinds reported at the API boundary.
const (
	KindIngestion     = "ingestion"
	KindRetrieval     = "retrieval"
	KindGeneration    = "generation"
	KindConfiguration = "configuration"
	KindValidation    = "validation"
	KindInternal      = "internal"
)

// IngestionError is returned when a document cannot be loaded, chunked, embedded or indexed.
type IngestionError struct {
	Source string
	Op     string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError is returned when a question cannot be embedded or the index query fails.
type RetrievalError struct {
	Collection string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval from %q failed: %v", e.Collection, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError is returned when an LLM backend call fails or times out.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s failed: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ConfigurationError is returned when a backend is selected whose settings are missing.
type ConfigurationError struct {
	Backend string
	Field   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("backend %s is not configured: missing %s", e.Backend, e.Field)
}

// Kind classifies err for reporting. Unknown errors are "internal".
func Kind(err error) string {
	var (
		ingestErr    *IngestionError
		retrievalErr *RetrievalError
		genErr       *GenerationError
		cfgErr       *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.As(err, &retrievalErr):
		return KindRetrieval
	case errors.As(err, &ingestErr):
		return KindIngestion
	default:
		return KindInternal
	}
}
