package storage

import "time"

// Collection is a named group of documents sharing one vector index.
type Collection struct {
	ID        int
	Name      string
	CreatedAt time.Time
}

// DocumentRecord represents one ingested source document.
type DocumentRecord struct {
	CollectionID int
	SourceID     string // Base file name, also the chunk ID prefix
	Path         string
	Hash         string // SHA256 hex string of file content
	Pages        int    // Pages that survived loading
	ChunkCount   int
	ParsedBy     string
	IngestedAt   time.Time
}

// ChunkRecord represents a chunk of a document, mirrored from the vector index.
type ChunkRecord struct {
	CollectionID int    `json:"-"`
	ID           string `json:"id"` // Chunk ID (the vector point's chunk_id payload)
	SourceID     string `json:"source"`
	Page         int    `json:"page,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	Hash         string `json:"hash"`
	ParsedBy     string `json:"parsed_by"`
	TokenCount   int    `json:"token_count"`
	Text         string `json:"text"`
}

// Vote is a single feedback value on a chunk.
type Vote int

const (
	VoteDown Vote = -1
	VoteUp   Vote = 1
)

// FeedbackTotals aggregates recorded votes for one chunk.
type FeedbackTotals struct {
	ChunkID string
	Up      int64
	Down    int64
}
