package rag

import (
	"sort"

	"edurag/internal/feedback"
)

// ReputationLookup returns the current votes for a chunk.
type ReputationLookup func(chunkID string) feedback.Votes

// Rerank moves chunks with net-negative reputation down the list. Each chunk gets
// penalty = max(0, down-up) * beta and the list is stably sorted by penalty, so
// chunks with equal penalty keep their retrieval order.
//
// The input is never modified. A nil lookup or beta <= 0 returns a copy of ranked
// unchanged. Chunks without an ID get no penalty.
func Rerank(ranked []Source, lookup ReputationLookup, beta float64) []Source {
	out := make([]Source, len(ranked))
	copy(out, ranked)
	if lookup == nil || beta <= 0 || len(out) < 2 {
		return out
	}

	type scored struct {
		src     Source
		penalty float64
	}
	items := make([]scored, len(out))
	for i, s := range out {
		items[i] = scored{src: s, penalty: penalty(s.ID, lookup, beta)}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].penalty < items[b].penalty
	})
	for i := range items {
		out[i] = items[i].src
	}
	return out
}

func penalty(chunkID string, lookup ReputationLookup, beta float64) float64 {
	if chunkID == "" {
		return 0
	}
	v := lookup(chunkID)
	net := v.Down - v.Up
	if net <= 0 {
		return 0
	}
	return float64(net) * beta
}
