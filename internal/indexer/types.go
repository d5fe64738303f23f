package indexer

import "edurag/internal/chunking"

// Options control how a document is split into chunks.
type Options struct {
	// WindowSize is the pre-chunk window in characters.
	WindowSize int `json:"window_size"`
	// Overlap is the number of characters shared by adjacent windows.
	Overlap int `json:"overlap"`
	// Chunking tunes the semantic chunker.
	Chunking chunking.Options `json:"-"`
}

// DefaultOptions returns the default pre-chunk window and semantic settings.
func DefaultOptions() Options {
	return Options{
		WindowSize: chunking.DefaultWindowSize,
		Overlap:    chunking.DefaultOverlap,
		Chunking:   chunking.DefaultOptions(),
	}
}

// DocumentResult reports the outcome of ingesting one file.
type DocumentResult struct {
	Path     string `json:"path"`
	SourceID string `json:"source"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
	// Unchanged is set when the file and options match the last ingestion and nothing was rewritten.
	Unchanged bool   `json:"unchanged,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes a multi-document ingestion.
type Report struct {
	Collection string           `json:"collection"`
	Documents  []DocumentResult `json:"documents"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
}
