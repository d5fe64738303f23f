package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks edurag/internal/vectorstore VectorStore

import (
	"context"
	"sort"
)

// Payload keys stored with every chunk point.
const (
	PayloadChunkID  = "chunk_id"
	PayloadText     = "text"
	PayloadSource   = "source"
	PayloadPage     = "page"
	PayloadParsedBy = "parsed_by"
	PayloadHash     = "hash"
	PayloadIndex    = "chunk_index"
)

// Point represents a vector point with metadata. ID is the chunk ID.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection if needed and checks its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CollectionExists reports whether the collection has been created.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k nearest points ordered by score, ties broken by chunk ID.
	// A collection that does not exist yields no results.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// DeleteBySource removes every point whose source payload equals source.
	DeleteBySource(ctx context.Context, collection string, source string) error

	// DropCollection removes the collection and all its points.
	DropCollection(ctx context.Context, collection string) error
}

// sortResults orders results by descending score then ascending point ID.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PointID < results[j].PointID
	})
}
