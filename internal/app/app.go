// Package app wires configuration, storage, the vector index and the answering
// backends into a ready Service. The HTTP server, the CLI and the MCP server share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"edurag/internal/chunking"
	"edurag/internal/config"
	"edurag/internal/feedback"
	"edurag/internal/indexer"
	"edurag/internal/llm"
	"edurag/internal/loader"
	"edurag/internal/service"
	"edurag/internal/storage"
	"edurag/internal/summarize"
	"edurag/internal/uploads"
	"edurag/internal/vectorstore"
)

// HealthCheckCollection is the vector collection the health check looks up.
const HealthCheckCollection = "health"

// App holds the long-lived components built from a Config.
type App struct {
	Config      *config.Config
	DB          *sql.DB
	VectorStore vectorstore.VectorStore
	Embedder    llm.Embedder
	Registry    *llm.Registry
	Pipeline    *indexer.Pipeline
	Feedback    *feedback.Store
	Uploads     *uploads.Manager
	Service     service.Service
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New opens the database, connects the vector store and builds the service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	a, err := newWithDB(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func newWithDB(ctx context.Context, cfg *config.Config, db *sql.DB) (*App, error) {
	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	collectionRepo := storage.NewCollectionRepo(db)
	documentRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	feedbackRepo := storage.NewFeedbackRepo(db)
	summaryRepo := storage.NewSummaryRepo(db)

	embeddingsClient := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	embeddingsClient.BatchSize = cfg.EmbeddingBatchSize
	var embedder llm.Embedder = embeddingsClient
	if cfg.EmbeddingCacheSize > 0 {
		embedder = llm.NewCachedEmbedder(embeddingsClient, cfg.EmbeddingCacheSize)
	}

	registry := llm.NewRegistry(BackendConfigs(cfg.Backends))

	reputation := feedback.NewStore(feedbackRepo)
	if err := reputation.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	pipeline := indexer.NewPipeline(
		loader.New(),
		collectionRepo,
		documentRepo,
		chunkRepo,
		embedder,
		vectorStore,
		indexer.Config{
			VectorSize:       cfg.QdrantVectorSize,
			CollectionPrefix: cfg.QdrantCollectionPrefix,
			EmbeddingModel:   cfg.EmbeddingModelName,
			Workers:          cfg.IngestWorkers,
		},
	)

	uploadsManager, err := uploads.NewManager(cfg.UploadsDir, collectionRepo)
	if err != nil {
		return nil, err
	}

	svc := service.New(pipeline, embedder, vectorStore, registry, reputation, summaryRepo, ServiceOptions(cfg))

	return &App{
		Config:      cfg,
		DB:          db,
		VectorStore: vectorStore,
		Embedder:    embedder,
		Registry:    registry,
		Pipeline:    pipeline,
		Feedback:    reputation,
		Uploads:     uploadsManager,
		Service:     svc,
	}, nil
}

func newVectorStore(cfg *config.Config) (vectorstore.VectorStore, error) {
	if cfg.VectorBackend == "memory" {
		slog.Warn("Using in-memory vector store; the index is lost on exit")
		return vectorstore.NewMemoryStore(), nil
	}
	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	slog.Info("Qdrant client created", "url", cfg.QdrantURL)
	return store, nil
}

// BackendConfigs converts configured backends for the registry. Unknown names are
// skipped with a warning.
func BackendConfigs(backends []config.Backend) []llm.BackendConfig {
	out := make([]llm.BackendConfig, 0, len(backends))
	for _, b := range backends {
		backend, err := llm.ParseBackend(b.Name)
		if err != nil {
			slog.Warn("Ignoring unknown backend", "name", b.Name)
			continue
		}
		out = append(out, llm.BackendConfig{
			Backend:           backend,
			BaseURL:           b.BaseURL,
			Model:             b.Model,
			APIKey:            b.APIKey,
			APIKeyEnv:         b.APIKeyEnv,
			RequestsPerSecond: b.RequestsPerSecond,
			Params: llm.ChatParams{
				MaxTokens:   b.MaxTokens,
				Temperature: b.Temperature,
			},
		})
	}
	return out
}

// ServiceOptions maps configuration onto service options.
func ServiceOptions(cfg *config.Config) service.Options {
	chunkOpts := chunking.DefaultOptions()
	chunkOpts.Percentile = cfg.SemanticPercentile
	chunkOpts.BufferSize = cfg.SemanticBufferSize
	chunkOpts.MinChars = cfg.MinChunkChars
	chunkOpts.MaxChars = cfg.MaxChunkChars

	summaryOpts := summarize.DefaultOptions()
	summaryOpts.Workers = cfg.SummaryWorkers

	return service.Options{
		Ingest: indexer.Options{
			WindowSize: cfg.ChunkWindowSize,
			Overlap:    cfg.ChunkOverlap,
			Chunking:   chunkOpts,
		},
		TopK:    cfg.RetrievalTopK,
		Beta:    cfg.FeedbackBeta,
		Summary: summaryOpts,
		Retry:   summarize.DefaultRetryPolicy(),
	}
}

// CheckEmbeddings embeds a sample text and checks the vector size matches the
// configured one, so a misconfigured model fails at startup instead of on first ingest.
func (a *App) CheckEmbeddings(ctx context.Context) error {
	vectors, err := a.Embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) != a.Config.QdrantVectorSize {
		got := 0
		if len(vectors) > 0 {
			got = len(vectors[0])
		}
		return fmt.Errorf("embedding vector size mismatch: expected %d, got %d", a.Config.QdrantVectorSize, got)
	}
	return nil
}

// AvailableBackends lists the names of backends ready to answer.
func (a *App) AvailableBackends() []string {
	available := a.Registry.Available()
	names := make([]string, len(available))
	for i, b := range available {
		names[i] = b.String()
	}
	return names
}

// Close releases the vector store connection and the database.
func (a *App) Close() error {
	var errs []error
	if closer, ok := a.VectorStore.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
