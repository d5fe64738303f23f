package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"edurag/internal/apperr"
	"edurag/internal/chunking"
	"edurag/internal/contextutil"
	"edurag/internal/llm"
	"edurag/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved when none is configured.
const DefaultTopK = 5

const promptTemplate = `Use the following context to answer the user's query. If you cannot answer, please respond with 'I don't know'.

User's Query:
%s

Context:
%s

Instructions:
- Avoid unnecessary line breaks, slashes, or bullet points unless specifically required.
`

// ChainConfig holds the per-chain settings.
type ChainConfig struct {
	// Collection is the vector index collection name.
	Collection string
	// Backend names the generator, used in error reports.
	Backend string
	// TopK is the number of chunks retrieved per question.
	TopK int
	// Beta scales the feedback penalty. Zero disables re-ranking.
	Beta float64
}

// Chain answers questions over one collection with one generator:
// embed → search → rerank → prompt → generate. It holds no mutable state and is
// safe for concurrent use.
type Chain struct {
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	generator  llm.Generator
	reputation ReputationLookup
	cfg        ChainConfig
	logger     *slog.Logger
}

// NewChain creates a chain. reputation may be nil to disable re-ranking.
func NewChain(
	embedder llm.Embedder,
	store vectorstore.VectorStore,
	generator llm.Generator,
	reputation ReputationLookup,
	cfg ChainConfig,
) *Chain {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Chain{
		embedder:   embedder,
		store:      store,
		generator:  generator,
		reputation: reputation,
		cfg:        cfg,
		logger:     slog.Default(),
	}
}

func (c *Chain) getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return c.logger
}

// Retrieve returns the re-ranked chunks for question. An empty or missing
// collection yields no sources and no error.
func (c *Chain) Retrieve(ctx context.Context, question string) ([]Source, error) {
	logger := c.getLogger(ctx)

	embeddings, err := c.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, &apperr.RetrievalError{Collection: c.cfg.Collection, Err: fmt.Errorf("embed question: %w", err)}
	}
	if len(embeddings) == 0 {
		return nil, &apperr.RetrievalError{Collection: c.cfg.Collection, Err: errors.New("no embedding returned for question")}
	}

	results, err := c.store.Search(ctx, c.cfg.Collection, embeddings[0], c.cfg.TopK, nil)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return nil, &apperr.RetrievalError{Collection: c.cfg.Collection, Err: fmt.Errorf("search: %w", err)}
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, sourceFromResult(r))
	}
	logger.InfoContext(ctx, "vector search completed", "results_count", len(sources), "k_requested", c.cfg.TopK)

	reranked := Rerank(sources, c.reputation, c.cfg.Beta)
	if len(reranked) > 0 && reranked[0].ID != sources[0].ID {
		logger.DebugContext(ctx, "feedback changed ranking", "top_before", sources[0].ID, "top_after", reranked[0].ID)
	}
	return reranked, nil
}

// Answer retrieves context for question and asks the generator. When nothing is
// retrieved the generator is not called and NoContext is set.
func (c *Chain) Answer(ctx context.Context, question string) (Answer, error) {
	logger := c.getLogger(ctx)
	logger.InfoContext(ctx, "RAG query started", "collection", c.cfg.Collection, "backend", c.cfg.Backend)

	sources, err := c.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	if len(sources) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return Answer{Text: NoContextAnswer, Sources: []Source{}, NoContext: true}, nil
	}

	prompt := BuildPrompt(question, sources)
	logger.DebugContext(ctx, "sending prompt to LLM", "prompt_length", len(prompt), "chunks_included", len(sources))

	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return Answer{}, &apperr.GenerationError{Backend: c.cfg.Backend, Err: err}
	}

	answer := Polish(raw)
	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(sources), "answer_length", len(answer))
	return Answer{Text: answer, Sources: sources}, nil
}

// BuildPrompt renders the question and sources into the answering prompt.
func BuildPrompt(question string, sources []Source) string {
	blocks := make([]string, 0, len(sources))
	for _, s := range sources {
		blocks = append(blocks, citationHeader(s.Chunk)+"\n"+s.Text)
	}
	return fmt.Sprintf(promptTemplate, question, strings.Join(blocks, "\n\n"))
}

func citationHeader(c chunking.Chunk) string {
	if c.Page > 0 {
		return fmt.Sprintf("[Source: %s, Page: %d, Chunk: %s]", c.SourceID, c.Page, c.ID)
	}
	return fmt.Sprintf("[Source: %s, Chunk: %s]", c.SourceID, c.ID)
}

func sourceFromResult(r vectorstore.SearchResult) Source {
	c := chunking.Chunk{
		ID:       r.PointID,
		SourceID: metaString(r.Meta, vectorstore.PayloadSource),
		Page:     metaInt(r.Meta, vectorstore.PayloadPage),
		Index:    metaInt(r.Meta, vectorstore.PayloadIndex),
		Text:     metaString(r.Meta, vectorstore.PayloadText),
		Hash:     metaString(r.Meta, vectorstore.PayloadHash),
		ParsedBy: metaString(r.Meta, vectorstore.PayloadParsedBy),
	}
	if id := metaString(r.Meta, vectorstore.PayloadChunkID); id != "" {
		c.ID = id
	}
	return Source{Chunk: c, Score: r.Score}
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// metaInt reads an integer payload value. Depending on the store it arrives as
// int, int64 or float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
