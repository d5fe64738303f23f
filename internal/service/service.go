package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_service.go -package=mocks edurag/internal/service Service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"edurag/internal/apperr"
	"edurag/internal/collection"
	"edurag/internal/contextutil"
	"edurag/internal/feedback"
	"edurag/internal/indexer"
	"edurag/internal/llm"
	"edurag/internal/rag"
	"edurag/internal/storage"
	"edurag/internal/summarize"
	"edurag/internal/vectorstore"
)

// Indexer is the ingestion side the service depends on.
// This interface is defined from the service layer's perspective (consumer-first).
type Indexer interface {
	IngestAll(ctx context.Context, key string, paths []string, opts indexer.Options) (indexer.Report, error)
	CollectionStats(ctx context.Context, key string) (*indexer.CollectionStats, error)
	GetChunk(ctx context.Context, key, chunkID string) (*storage.ChunkRecord, error)
	SourceText(ctx context.Context, key, sourceID string) (string, error)
	DeleteCollection(ctx context.Context, key string) error
	IndexName(key string) string
}

// Generators resolves answering backends.
type Generators interface {
	Generator(b llm.Backend) (llm.Generator, error)
	Prepare(ctx context.Context, b llm.Backend) error
}

// SummaryCache stores finished summaries by request key.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, collection, sourceID, summary string) error
	DeleteByCollection(ctx context.Context, collection string) (int64, error)
}

// IngestRequest asks for files to be ingested into a collection.
type IngestRequest struct {
	Collection string
	Paths      []string
	// WindowSize overrides the configured pre-chunk window when positive.
	WindowSize int
	// Overlap overrides the configured overlap when set; zero disables it.
	Overlap *int
}

// AskRequest asks a question about a collection.
type AskRequest struct {
	Collection string
	Question   string
	Backend    string
}

// FeedbackRequest records one vote on a chunk.
type FeedbackRequest struct {
	ChunkID   string
	Direction string
}

// SummarizeRequest asks for a summary of some sources of a collection.
type SummarizeRequest struct {
	Collection   string
	Sources      []string
	Backend      string
	Instructions string
}

// SummarizeResponse carries a summary and whether it came from the cache.
type SummarizeResponse struct {
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
}

// Service is the application boundary shared by HTTP, CLI and MCP.
type Service interface {
	// Ingest ingests files into a collection and invalidates its cached chains and summaries.
	Ingest(ctx context.Context, req IngestRequest) (indexer.Report, error)
	// Ask answers a question from the collection's indexed chunks.
	Ask(ctx context.Context, req AskRequest) (rag.Answer, error)
	// RecordFeedback records an up or down vote on a chunk.
	RecordFeedback(ctx context.Context, req FeedbackRequest) error
	// Summarize condenses the named sources of a collection.
	Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error)
	// Stats reports what is indexed in a collection.
	Stats(ctx context.Context, collectionName string) (*indexer.CollectionStats, error)
	// Chunk returns one stored chunk.
	Chunk(ctx context.Context, collectionName, chunkID string) (*storage.ChunkRecord, error)
	// DeleteCollection removes a collection's index and records. Uploaded files are kept.
	DeleteCollection(ctx context.Context, collectionName string) error
}

// Options are the service-wide tunables.
type Options struct {
	Ingest  indexer.Options
	TopK    int
	Beta    float64
	Summary summarize.Options
	Retry   summarize.RetryPolicy
}

type service struct {
	indexer    Indexer
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	generators Generators
	feedback   *feedback.Store
	summaries  SummaryCache
	chains     *ChainCache
	opts       Options
	logger     *slog.Logger

	// summaryGens caps summarization calls per backend across concurrent requests.
	summaryMu   sync.Mutex
	summaryGens map[llm.Backend]*llm.Bounded
}

// New creates a Service. summaries may be nil to disable summary caching.
func New(
	idx Indexer,
	embedder llm.Embedder,
	store vectorstore.VectorStore,
	generators Generators,
	reputation *feedback.Store,
	summaries SummaryCache,
	opts Options,
) Service {
	s := &service{
		indexer:    idx,
		embedder:   embedder,
		store:      store,
		generators: generators,
		feedback:   reputation,
		summaries:  summaries,
		opts:       opts,
		logger:     slog.Default(),

		summaryGens: make(map[llm.Backend]*llm.Bounded),
	}
	s.chains = NewChainCache(s.buildChain)
	return s
}

func (s *service) getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return s.logger
}

func (s *service) buildChain(ctx context.Context, key ChainKey) (Answerer, error) {
	gen, err := s.generators.Generator(key.Backend)
	if err != nil {
		return nil, err
	}
	if err := s.generators.Prepare(ctx, key.Backend); err != nil {
		return nil, err
	}
	var lookup rag.ReputationLookup
	if s.feedback != nil {
		lookup = s.feedback.Lookup
	}
	return rag.NewChain(s.embedder, s.store, gen, lookup, rag.ChainConfig{
		Collection: s.indexer.IndexName(key.Collection),
		Backend:    key.Backend.String(),
		TopK:       s.opts.TopK,
		Beta:       s.opts.Beta,
	}), nil
}

// summaryGenerator returns the backend's generator behind the summarization cap shared by
// every request to that backend. Backends are resolved once at startup, so the first
// generator seen for b is the one kept.
func (s *service) summaryGenerator(b llm.Backend, gen llm.Generator) llm.Generator {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	if bounded, ok := s.summaryGens[b]; ok {
		return bounded
	}
	workers := s.opts.Summary.Workers
	if workers <= 0 {
		workers = summarize.DefaultWorkers
	}
	bounded := llm.NewBounded(gen, workers)
	s.summaryGens[b] = bounded
	return bounded
}

func collectionKey(name string) (string, error) {
	key, err := collection.Key(name)
	if err != nil {
		return "", &ValidationError{Field: "collection", Message: err.Error()}
	}
	return key, nil
}

func parseBackend(name string) (llm.Backend, error) {
	b, err := llm.ParseBackend(name)
	if err != nil {
		return 0, &ValidationError{Field: "backend", Message: err.Error()}
	}
	return b, nil
}

// Ingest ingests req.Paths. Per-document failures are reported in the Report and
// joined into the returned error. The collection's chains and cached summaries are
// invalidated either way.
func (s *service) Ingest(ctx context.Context, req IngestRequest) (indexer.Report, error) {
	logger := s.getLogger(ctx)

	key, err := collectionKey(req.Collection)
	if err != nil {
		return indexer.Report{}, err
	}
	if len(req.Paths) == 0 {
		return indexer.Report{}, &ValidationError{Field: "paths", Message: "at least one document is required"}
	}

	opts := s.opts.Ingest
	if req.WindowSize > 0 {
		opts.WindowSize = req.WindowSize
	}
	if req.Overlap != nil {
		if *req.Overlap < 0 {
			return indexer.Report{}, &ValidationError{Field: "overlap", Message: "cannot be negative"}
		}
		if *req.Overlap >= opts.WindowSize {
			return indexer.Report{}, &ValidationError{Field: "overlap", Message: "must be smaller than the window size"}
		}
		opts.Overlap = *req.Overlap
	}

	report, err := s.indexer.IngestAll(ctx, key, req.Paths, opts)
	s.invalidate(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "ingestion finished with failures", "collection", key, "failed", report.Failed)
		return report, err
	}
	logger.InfoContext(ctx, "ingestion finished", "collection", key, "documents", report.Succeeded)
	return report, nil
}

// invalidate drops everything derived from the collection's previous content:
// its answering chains and its cached summaries.
func (s *service) invalidate(ctx context.Context, key string) {
	s.chains.Invalidate(key)
	if s.summaries == nil {
		return
	}
	n, err := s.summaries.DeleteByCollection(ctx, key)
	if err != nil {
		s.getLogger(ctx).WarnContext(ctx, "failed to drop cached summaries", "collection", key, "error", err)
		return
	}
	if n > 0 {
		s.getLogger(ctx).InfoContext(ctx, "dropped cached summaries", "collection", key, "count", n)
	}
}

// Ask answers req.Question. Failures are typed: RetrievalError, GenerationError or
// ConfigurationError, never a placeholder answer.
func (s *service) Ask(ctx context.Context, req AskRequest) (rag.Answer, error) {
	key, err := collectionKey(req.Collection)
	if err != nil {
		return rag.Answer{}, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.getLogger(ctx).WarnContext(ctx, "empty question in ask request")
		return rag.Answer{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	backend, err := parseBackend(req.Backend)
	if err != nil {
		return rag.Answer{}, err
	}

	chain, err := s.chains.Get(ctx, ChainKey{Collection: key, Backend: backend})
	if err != nil {
		return rag.Answer{}, err
	}
	return chain.Answer(ctx, question)
}

// RecordFeedback records one vote.
func (s *service) RecordFeedback(ctx context.Context, req FeedbackRequest) error {
	chunkID := strings.TrimSpace(req.ChunkID)
	if chunkID == "" {
		return &ValidationError{Field: "chunk_id", Message: "cannot be empty"}
	}
	d, err := feedback.ParseDirection(req.Direction)
	if err != nil {
		return &ValidationError{Field: "direction", Message: err.Error()}
	}
	if err := s.feedback.Record(ctx, chunkID, d); err != nil {
		return WrapError(err, "failed to record feedback")
	}
	s.getLogger(ctx).InfoContext(ctx, "feedback recorded", "chunk_id", chunkID, "direction", d.String())
	return nil
}

// Summarize returns a cached summary when the same request was answered before,
// and otherwise folds the sources' chunk texts through the backend.
func (s *service) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error) {
	logger := s.getLogger(ctx)

	key, err := collectionKey(req.Collection)
	if err != nil {
		return SummarizeResponse{}, err
	}
	sources := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return SummarizeResponse{}, &ValidationError{Field: "sources", Message: "at least one source is required"}
	}
	slices.Sort(sources)
	sources = slices.Compact(sources)

	backend, err := parseBackend(req.Backend)
	if err != nil {
		return SummarizeResponse{}, err
	}

	cacheKey := summarize.CacheKey(key, sources, backend.String(), req.Instructions)
	if s.summaries != nil {
		cached, err := s.summaries.Get(ctx, cacheKey)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "summary cache hit", "collection", key, "sources", len(sources))
			return SummarizeResponse{Summary: cached, Cached: true}, nil
		case !errors.Is(err, storage.ErrNotFound):
			logger.WarnContext(ctx, "summary cache lookup failed", "error", err)
		}
	}

	texts := make([]string, 0, len(sources))
	for _, src := range sources {
		text, err := s.indexer.SourceText(ctx, key, src)
		if errors.Is(err, storage.ErrNotFound) {
			return SummarizeResponse{}, &NotFoundError{Collection: key, Kind: "source", ID: src}
		}
		if err != nil {
			return SummarizeResponse{}, WrapError(err, "failed to load source text")
		}
		texts = append(texts, text)
	}

	gen, err := s.generators.Generator(backend)
	if err != nil {
		return SummarizeResponse{}, err
	}
	if err := s.generators.Prepare(ctx, backend); err != nil {
		return SummarizeResponse{}, err
	}

	opts := s.opts.Summary
	opts.Instructions = req.Instructions
	leaf := summarize.WithRetry(s.summaryGenerator(backend, gen), s.opts.Retry)
	summary, err := summarize.New(leaf, opts).Summarize(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return SummarizeResponse{}, &apperr.GenerationError{Backend: backend.String(), Err: err}
	}

	if s.summaries != nil {
		if err := s.summaries.Put(ctx, cacheKey, key, strings.Join(sources, ","), summary); err != nil {
			logger.WarnContext(ctx, "failed to cache summary", "error", err)
		}
	}
	return SummarizeResponse{Summary: summary}, nil
}

// Stats reports the collection's statistics.
func (s *service) Stats(ctx context.Context, collectionName string) (*indexer.CollectionStats, error) {
	key, err := collectionKey(collectionName)
	if err != nil {
		return nil, err
	}
	stats, err := s.indexer.CollectionStats(ctx, key)
	if err != nil {
		return nil, WrapError(err, "failed to compute collection stats")
	}
	return stats, nil
}

// Chunk returns one stored chunk of the collection.
func (s *service) Chunk(ctx context.Context, collectionName, chunkID string) (*storage.ChunkRecord, error) {
	key, err := collectionKey(collectionName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(chunkID) == "" {
		return nil, &ValidationError{Field: "chunk_id", Message: "cannot be empty"}
	}
	chunk, err := s.indexer.GetChunk(ctx, key, chunkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Collection: key, Kind: "chunk", ID: chunkID}
	}
	if err != nil {
		return nil, WrapError(err, "failed to get chunk")
	}
	return chunk, nil
}

// DeleteCollection drops the collection's vector index and records, then everything
// cached from them. Deleting a collection that does not exist is not an error.
func (s *service) DeleteCollection(ctx context.Context, collectionName string) error {
	key, err := collectionKey(collectionName)
	if err != nil {
		return err
	}
	err = s.indexer.DeleteCollection(ctx, key)
	s.invalidate(ctx, key)
	if err != nil {
		return WrapError(err, "failed to delete collection")
	}
	s.getLogger(ctx).InfoContext(ctx, "collection deleted", "collection", key)
	return nil
}
