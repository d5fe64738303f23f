package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks edurag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// ReplaceSource atomically replaces every chunk of one source document.
	ReplaceSource(ctx context.Context, collectionID int, sourceID string, chunks []ChunkRecord) error
	// DeleteBySource deletes all chunks for a given source document.
	DeleteBySource(ctx context.Context, collectionID int, sourceID string) error
	// ListIDsBySource returns all chunk IDs for a source, ordered by chunk_index.
	ListIDsBySource(ctx context.Context, collectionID int, sourceID string) ([]string, error)
	// ListBySource returns the chunks of a source ordered by chunk_index.
	ListBySource(ctx context.Context, collectionID int, sourceID string) ([]ChunkRecord, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, collectionID int, id string) (*ChunkRecord, error)
	// TokenCounts returns the token count of every chunk in a collection.
	TokenCounts(ctx context.Context, collectionID int) ([]int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceSource deletes the source's chunks and inserts chunks in one transaction.
// Every chunk must belong to sourceID.
func (r *ChunkRepo) ReplaceSource(ctx context.Context, collectionID int, sourceID string, chunks []ChunkRecord) error {
	for _, c := range chunks {
		if c.SourceID != sourceID {
			return fmt.Errorf("chunk %s belongs to %s, not %s", c.ID, c.SourceID, sourceID)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection_id = ? AND source_id = ?",
		collectionID, sourceID,
	); err != nil {
		return fmt.Errorf("failed to delete chunks by source: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection_id, id, source_id, page, chunk_index, hash, parsed_by, token_count, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			collectionID, c.ID, c.SourceID, c.Page, c.ChunkIndex, c.Hash, c.ParsedBy, c.TokenCount, c.Text,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// DeleteBySource deletes all chunks for a given source document.
func (r *ChunkRepo) DeleteBySource(ctx context.Context, collectionID int, sourceID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection_id = ? AND source_id = ?",
		collectionID, sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by source: %w", err)
	}
	return nil
}

// ListIDsBySource returns all chunk IDs for a source, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListIDsBySource(ctx context.Context, collectionID int, sourceID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE collection_id = ? AND source_id = ? ORDER BY chunk_index",
		collectionID, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListBySource returns the chunks of a source ordered by chunk_index.
func (r *ChunkRepo) ListBySource(ctx context.Context, collectionID int, sourceID string) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT collection_id, id, source_id, page, chunk_index, hash, parsed_by, token_count, text
		 FROM chunks WHERE collection_id = ? AND source_id = ? ORDER BY chunk_index`,
		collectionID, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.CollectionID, &c.ID, &c.SourceID, &c.Page, &c.ChunkIndex, &c.Hash, &c.ParsedBy, &c.TokenCount, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, collectionID int, id string) (*ChunkRecord, error) {
	var c ChunkRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT collection_id, id, source_id, page, chunk_index, hash, parsed_by, token_count, text
		 FROM chunks WHERE collection_id = ? AND id = ?`,
		collectionID, id,
	).Scan(&c.CollectionID, &c.ID, &c.SourceID, &c.Page, &c.ChunkIndex, &c.Hash, &c.ParsedBy, &c.TokenCount, &c.Text)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &c, nil
}

// TokenCounts returns the token count of every chunk in a collection.
func (r *ChunkRepo) TokenCounts(ctx context.Context, collectionID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT token_count FROM chunks WHERE collection_id = ? ORDER BY source_id, chunk_index",
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query token counts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan token count: %w", err)
		}
		counts = append(counts, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}
