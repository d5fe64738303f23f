package rag

import "edurag/internal/chunking"

// NoContextAnswer is returned when retrieval finds nothing to ground an answer on.
const NoContextAnswer = "I couldn't find any relevant information in this collection to answer the question."

// Source is a retrieved chunk with its similarity score.
type Source struct {
	chunking.Chunk
	// Score is the vector similarity reported by the index.
	Score float32 `json:"score"`
}

// Answer is the result of answering one question.
type Answer struct {
	// Text is the polished model output.
	Text string `json:"answer"`
	// Sources are the chunks given to the model, in prompt order.
	Sources []Source `json:"sources"`
	// NoContext is set when retrieval returned nothing and no model was called.
	NoContext bool `json:"no_context"`
}
