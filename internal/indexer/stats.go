package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"

	"edurag/internal/storage"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "semantic-v1"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// CollectionStats describes what is currently indexed in one collection.
type CollectionStats struct {
	// Collection is the collection key.
	Collection string `json:"collection"`
	// Index is the vector index collection name.
	Index string `json:"index"`
	// Documents is the number of ingested documents.
	Documents int `json:"documents"`
	// DocsWith0Chunks is the number of documents recorded without chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// Chunks is the number of stored chunks.
	Chunks int `json:"chunks"`
	// Sources lists the ingested source IDs in order.
	Sources []string `json:"sources"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + vector size).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// CollectionStats computes statistics for the collection key from SQLite.
// A collection that was never ingested reports zero counts.
func (p *Pipeline) CollectionStats(ctx context.Context, key string) (*CollectionStats, error) {
	stats := &CollectionStats{
		Collection:     key,
		Index:          p.IndexName(key),
		Sources:        []string{},
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   indexVersion(p.cfg.EmbeddingModel, p.cfg.VectorSize),
	}

	coll, err := p.collections.GetByName(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	docs, err := p.documents.ListByCollection(ctx, coll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	stats.Documents = len(docs)
	for _, doc := range docs {
		stats.Sources = append(stats.Sources, doc.SourceID)
		if doc.ChunkCount == 0 {
			stats.DocsWith0Chunks++
		}
	}

	tokenCounts, err := p.chunkRepo.TokenCounts(ctx, coll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token counts: %w", err)
	}
	stats.Chunks = len(tokenCounts)
	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	return stats, nil
}

// indexVersion hashes everything that changes the vectors of an index.
func indexVersion(embeddingModel string, vectorSize int) string {
	input := fmt.Sprintf("%s|%s|vectorSize=%d", ChunkerVersion, embeddingModel, vectorSize)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	min := sorted[0]
	max := sorted[len(sorted)-1]

	// Compute mean
	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	// Compute p95 (nearest rank)
	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}
	p95 := sorted[p95Index]

	return ChunkTokenStats{
		Min:  min,
		Max:  max,
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  p95,
	}
}
