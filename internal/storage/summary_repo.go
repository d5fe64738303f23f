package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SummaryRepo caches generated document summaries by content key.
type SummaryRepo struct {
	db *sql.DB
}

// NewSummaryRepo creates a new SummaryRepo.
func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// Get returns the cached summary for key, or ErrNotFound.
func (r *SummaryRepo) Get(ctx context.Context, key string) (string, error) {
	var summary string
	err := r.db.QueryRowContext(ctx, "SELECT summary FROM summaries WHERE key = ?", key).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query summary: %w", err)
	}
	return summary, nil
}

// Put stores or replaces the summary for key.
func (r *SummaryRepo) Put(ctx context.Context, key, collection, sourceID, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO summaries (key, collection, source_id, summary) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET summary = excluded.summary, created_at = CURRENT_TIMESTAMP`,
		key, collection, sourceID, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// DeleteByCollection drops every cached summary of collection and reports how many
// were removed.
func (r *SummaryRepo) DeleteByCollection(ctx context.Context, collection string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM summaries WHERE collection = ?", collection)
	if err != nil {
		return 0, fmt.Errorf("failed to delete summaries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted summaries: %w", err)
	}
	return n, nil
}
