package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine similarity.
// It suits tests and single-process deployments; nothing is persisted.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	vectorSize int
	points     map[string]Point
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the collection or checks its vector size.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.vectorSize != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, c.vectorSize)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{vectorSize: vectorSize, points: make(map[string]Point)}
	return nil
}

// CollectionExists reports whether the collection has been created.
func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// Upsert stores copies of points. The collection must exist.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}
	for _, p := range points {
		if len(p.Vec) != c.vectorSize {
			return fmt.Errorf("point %s has vector size %d, expected %d", p.ID, len(p.Vec), c.vectorSize)
		}
	}
	for _, p := range points {
		meta := make(map[string]any, len(p.Meta)+1)
		for k, v := range p.Meta {
			meta[k] = v
		}
		meta[PayloadChunkID] = p.ID
		c.points[p.ID] = Point{ID: p.ID, Vec: append([]float32(nil), p.Vec...), Meta: meta}
	}
	return nil
}

// Search scores every point in the collection and returns the k best.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(c.points))
	for id, p := range c.points {
		if !matchesFilters(p.Meta, filters) {
			continue
		}
		meta := make(map[string]any, len(p.Meta))
		for k, v := range p.Meta {
			meta[k] = v
		}
		results = append(results, SearchResult{PointID: id, Score: cosine(query, p.Vec), Meta: meta})
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteBySource removes every point of one source document.
func (s *MemoryStore) DeleteBySource(_ context.Context, collection string, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for id, p := range c.points {
		if p.Meta[PayloadSource] == source {
			delete(c.points, id)
		}
	}
	return nil
}

// DropCollection removes the collection.
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Count returns the number of points in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return len(c.points)
	}
	return 0
}

func matchesFilters(meta map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		if key != PayloadSource && key != PayloadPage {
			continue
		}
		if fmt.Sprint(meta[key]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
