package llm

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the number of vectors kept when no size is configured.
const DefaultEmbeddingCacheSize = 10000

// CachedEmbedder memoizes vectors by text hash in front of another Embedder.
// Only texts missing from the cache are sent upstream.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[[32]byte, []float32]
}

// NewCachedEmbedder wraps next with an LRU cache of size entries.
func NewCachedEmbedder(next Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		cache, _ = lru.New[[32]byte, []float32](DefaultEmbeddingCacheSize)
	}
	return &CachedEmbedder{next: next, cache: cache}
}

// EmbedTexts returns cached vectors where possible and embeds the rest in one call.
// Returned vectors are copies; callers may modify them.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	keys := make([][32]byte, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = sha256.Sum256([]byte(text))
		if vec, ok := c.cache.Get(keys[i]); ok {
			result[i] = append([]float32(nil), vec...)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	vectors, err := c.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vectors))
	}
	for j, vec := range vectors {
		i := missingIdx[j]
		c.cache.Add(keys[i], append([]float32(nil), vec...))
		result[i] = vec
	}
	return result, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
