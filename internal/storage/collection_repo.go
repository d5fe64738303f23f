package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collection_store.go -package=mocks edurag/internal/storage CollectionStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// CollectionStore defines the interface for collection storage operations.
type CollectionStore interface {
	// GetOrCreate gets an existing collection by name, or creates it.
	GetOrCreate(ctx context.Context, name string) (Collection, error)
	// GetByName returns ErrNotFound if the collection does not exist.
	GetByName(ctx context.Context, name string) (Collection, error)
	// ListAll returns all collections ordered by name.
	ListAll(ctx context.Context) ([]Collection, error)
	// Delete removes a collection with its documents and chunks.
	Delete(ctx context.Context, name string) error
}

// CollectionRepo provides methods for collection operations.
// It implements the CollectionStore interface.
type CollectionRepo struct {
	db *sql.DB
}

// NewCollectionRepo creates a new CollectionRepo.
func NewCollectionRepo(db *sql.DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

// GetOrCreate gets an existing collection by name, or creates it if it doesn't exist.
func (r *CollectionRepo) GetOrCreate(ctx context.Context, name string) (Collection, error) {
	c, err := r.GetByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Collection{}, err
	}

	// INSERT OR IGNORE covers a concurrent creator winning the race
	if _, err := r.db.ExecContext(ctx, "INSERT OR IGNORE INTO collections (name) VALUES (?)", name); err != nil {
		return Collection{}, fmt.Errorf("failed to insert collection: %w", err)
	}
	return r.GetByName(ctx, name)
}

// GetByName gets a collection by name. Returns ErrNotFound if not found.
func (r *CollectionRepo) GetByName(ctx context.Context, name string) (Collection, error) {
	var c Collection
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM collections WHERE name = ?",
		name,
	).Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, fmt.Errorf("failed to query collection: %w", err)
	}
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Collection{}, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	return c, nil
}

// ListAll returns all collections ordered by name.
func (r *CollectionRepo) ListAll(ctx context.Context) ([]Collection, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var collections []Collection
	for rows.Next() {
		var c Collection
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return collections, nil
}

// Delete removes a collection. Documents and chunks cascade.
func (r *CollectionRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}
