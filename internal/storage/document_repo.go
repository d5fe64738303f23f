package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks edurag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Get gets a document by collection and source ID.
	// Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, collectionID int, sourceID string) (*DocumentRecord, error)
	// Upsert inserts a new document or updates an existing one.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// ListByCollection returns every document of a collection ordered by source ID.
	ListByCollection(ctx context.Context, collectionID int) ([]DocumentRecord, error)
	// Delete removes a document record.
	Delete(ctx context.Context, collectionID int, sourceID string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = "collection_id, source_id, path, hash, pages, chunk_count, parsed_by, ingested_at"

func scanDocument(scan func(dest ...any) error) (*DocumentRecord, error) {
	var doc DocumentRecord
	var ingestedAt string
	if err := scan(&doc.CollectionID, &doc.SourceID, &doc.Path, &doc.Hash, &doc.Pages, &doc.ChunkCount, &doc.ParsedBy, &ingestedAt); err != nil {
		return nil, err
	}
	t, err := parseTimestamp(ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ingested_at timestamp: %w", err)
	}
	doc.IngestedAt = t
	return &doc, nil
}

// Get gets a document by collection and source ID.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) Get(ctx context.Context, collectionID int, sourceID string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? AND source_id = ?",
		collectionID, sourceID,
	)
	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// Upsert inserts a new document or replaces the stored record for the same source.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (collection_id, source_id, path, hash, pages, chunk_count, parsed_by, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (collection_id, source_id) DO UPDATE SET
		 path = excluded.path, hash = excluded.hash, pages = excluded.pages,
		 chunk_count = excluded.chunk_count, parsed_by = excluded.parsed_by, ingested_at = CURRENT_TIMESTAMP`,
		doc.CollectionID, doc.SourceID, doc.Path, doc.Hash, doc.Pages, doc.ChunkCount, doc.ParsedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// ListByCollection returns every document of a collection ordered by source ID.
func (r *DocumentRepo) ListByCollection(ctx context.Context, collectionID int) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? ORDER BY source_id",
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}

// Delete removes a document record. A missing record is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, collectionID int, sourceID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection_id = ? AND source_id = ?",
		collectionID, sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
