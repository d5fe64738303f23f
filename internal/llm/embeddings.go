package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// DefaultEmbeddingBatchSize is the number of texts sent per embeddings request.
const DefaultEmbeddingBatchSize = 32

// EmbeddingsClient calls an OpenAI-compatible /v1/embeddings endpoint
// (text-embeddings-inference, Ollama, OpenAI).
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is the vector size every returned embedding must have.
	Dimensions int
	BatchSize  int
	client     *http.Client
}

// NewEmbeddingsClient creates a client whose vectors are checked against dimensions,
// the size the vector index was created with.
func NewEmbeddingsClient(baseURL, apiKey, model string, dimensions int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		Dimensions: dimensions,
		BatchSize:  DefaultEmbeddingBatchSize,
		client:     newHTTPClient(),
	}
}

// EmbeddingsRequest is the embeddings request body.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData is one embedding of the response. Index refers to the input position.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the embeddings response body.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedTexts embeds texts in batches of BatchSize and returns one vector per text,
// in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("empty input array")
	}

	size := c.BatchSize
	if size <= 0 {
		size = DefaultEmbeddingBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, size) {
		out, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", len(vectors), len(vectors)+len(batch), err)
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp EmbeddingsResponse
	req := EmbeddingsRequest{Model: c.Model, Input: texts}
	if err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/v1/embeddings", c.APIKey, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Servers may return data out of order; Index is authoritative when it is in range.
	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if len(d.Embedding) != c.Dimensions {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(d.Embedding), c.Dimensions)
		}
		pos := i
		if d.Index >= 0 && d.Index < len(out) && out[d.Index] == nil {
			pos = d.Index
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[pos] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return out, nil
}
