package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_feedback_store.go -package=mocks edurag/internal/storage FeedbackStore

import (
	"context"
	"database/sql"
	"fmt"
)

// FeedbackStore persists feedback votes as an append-only event log.
type FeedbackStore interface {
	// Append records one vote.
	Append(ctx context.Context, chunkID string, vote Vote) error
	// Totals aggregates every recorded vote per chunk, ordered by chunk ID.
	Totals(ctx context.Context) ([]FeedbackTotals, error)
}

// FeedbackRepo provides methods for feedback operations.
// It implements the FeedbackStore interface.
type FeedbackRepo struct {
	db *sql.DB
}

// NewFeedbackRepo creates a new FeedbackRepo.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

// Append records one vote.
func (r *FeedbackRepo) Append(ctx context.Context, chunkID string, vote Vote) error {
	if vote != VoteUp && vote != VoteDown {
		return fmt.Errorf("invalid vote %d", vote)
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO feedback_events (chunk_id, vote) VALUES (?, ?)",
		chunkID, int(vote),
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// Totals aggregates every recorded vote per chunk, ordered by chunk ID.
func (r *FeedbackRepo) Totals(ctx context.Context) ([]FeedbackTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chunk_id,
		        SUM(CASE WHEN vote > 0 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN vote < 0 THEN 1 ELSE 0 END)
		 FROM feedback_events GROUP BY chunk_id ORDER BY chunk_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var totals []FeedbackTotals
	for rows.Next() {
		var t FeedbackTotals
		if err := rows.Scan(&t.ChunkID, &t.Up, &t.Down); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return totals, nil
}
