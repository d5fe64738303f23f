package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"edurag/internal/apperr"
	"edurag/internal/chunking"
	"edurag/internal/collection"
	"edurag/internal/contextutil"
	"edurag/internal/llm"
	"edurag/internal/loader"
	"edurag/internal/storage"
	"edurag/internal/vectorstore"
)

// DefaultWorkers is the number of documents ingested in parallel when none is configured.
const DefaultWorkers = 4

// ErrNoChunks is returned when a document yields nothing worth indexing.
var ErrNoChunks = errors.New("document produced no chunks")

// Config holds pipeline settings that do not change per request.
type Config struct {
	// VectorSize is the embedding dimension; collections are created with it.
	VectorSize int
	// CollectionPrefix is prepended to collection keys to form vector index names.
	CollectionPrefix string
	// EmbeddingModel is recorded in the index version.
	EmbeddingModel string
	// Workers bounds parallel document ingestion.
	Workers int
}

// Pipeline orchestrates ingestion of documents into SQLite and the vector index.
type Pipeline struct {
	loader      *loader.Loader
	collections storage.CollectionStore
	documents   storage.DocumentStore
	chunkRepo   storage.ChunkStore
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	cfg         Config
	sourceLocks sync.Map // collection/source -> *sync.Mutex
	logger      *slog.Logger
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	ld *loader.Loader,
	collections storage.CollectionStore,
	documents storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	cfg Config,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{
		loader:      ld,
		collections: collections,
		documents:   documents,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		cfg:         cfg,
		logger:      slog.Default(),
	}
}

// getLogger extracts logger from context or returns default logger.
func (p *Pipeline) getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return p.logger
}

// IndexName returns the vector index collection for key.
func (p *Pipeline) IndexName(key string) string {
	return collection.IndexName(p.cfg.CollectionPrefix, key)
}

func (p *Pipeline) lockSource(key, sourceID string) func() {
	v, _ := p.sourceLocks.LoadOrStore(key+"/"+sourceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// IngestDocument loads, chunks, embeds and stores one file in the collection key.
//
// Everything that can fail without touching stored state (load, chunk, embed) runs
// first; on failure the previous version of the document stays indexed. Once the old
// chunks are evicted, any later failure evicts the source completely so stale and
// fresh chunks never coexist.
func (p *Pipeline) IngestDocument(ctx context.Context, key, path string, opts Options) (DocumentResult, error) {
	logger := p.getLogger(ctx).With("collection", key, "path", path)
	sourceID := filepath.Base(path)
	result := DocumentResult{Path: path, SourceID: sourceID}

	fail := func(op string, err error) (DocumentResult, error) {
		ingestErr := &apperr.IngestionError{Source: sourceID, Op: op, Err: err}
		result.Error = ingestErr.Error()
		logger.ErrorContext(ctx, "document ingestion failed", "op", op, "error", err)
		return result, ingestErr
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fail("read", err)
	}
	fingerprint := documentFingerprint(content, opts)

	unlock := p.lockSource(key, sourceID)
	defer unlock()

	coll, err := p.collections.GetOrCreate(ctx, key)
	if err != nil {
		return fail("collection", err)
	}

	existing, err := p.documents.Get(ctx, coll.ID, sourceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fail("lookup", err)
	}
	if existing != nil && existing.Hash == fingerprint {
		logger.DebugContext(ctx, "skipping unchanged document", "hash", fingerprint)
		result.Pages = existing.Pages
		result.Chunks = existing.ChunkCount
		result.Unchanged = true
		return result, nil
	}

	pages, err := p.loader.Load(ctx, path)
	if err != nil {
		return fail("load", err)
	}
	result.Pages = len(pages)

	var pre []chunking.PreChunk
	for _, page := range pages {
		pre = append(pre, chunking.PreChunkPage(sourceID, page.Number, page.Text, opts.WindowSize, opts.Overlap)...)
	}

	chunker := chunking.NewSemanticChunker(p.embedder.EmbedTexts, opts.Chunking)
	chunks, err := chunker.Chunk(ctx, pre)
	if err != nil {
		return fail("chunk", err)
	}
	if len(chunks) == 0 {
		return fail("chunk", ErrNoChunks)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fail("embed", err)
	}
	if len(vectors) != len(chunks) {
		return fail("embed", fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors)))
	}

	index := p.IndexName(key)
	if err := p.vectorStore.EnsureCollection(ctx, index, p.cfg.VectorSize); err != nil {
		return fail("index", err)
	}

	// Nothing has been written yet. From here on a failure must leave the source evicted.
	if err := p.evict(ctx, coll.ID, index, sourceID); err != nil {
		return fail("evict", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	records := make([]storage.ChunkRecord, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:  c.ID,
			Vec: vectors[i],
			Meta: map[string]any{
				vectorstore.PayloadText:     c.Text,
				vectorstore.PayloadSource:   c.SourceID,
				vectorstore.PayloadPage:     c.Page,
				vectorstore.PayloadParsedBy: c.ParsedBy,
				vectorstore.PayloadHash:     c.Hash,
				vectorstore.PayloadIndex:    c.Index,
			},
		}
		records[i] = storage.ChunkRecord{
			CollectionID: coll.ID,
			ID:           c.ID,
			SourceID:     c.SourceID,
			Page:         c.Page,
			ChunkIndex:   c.Index,
			Hash:         c.Hash,
			ParsedBy:     c.ParsedBy,
			TokenCount:   estimateTokens(c.Text),
			Text:         c.Text,
		}
	}

	if err := p.vectorStore.Upsert(ctx, index, points); err != nil {
		p.rollback(ctx, coll.ID, index, sourceID)
		return fail("upsert", err)
	}
	if err := p.chunkRepo.ReplaceSource(ctx, coll.ID, sourceID, records); err != nil {
		p.rollback(ctx, coll.ID, index, sourceID)
		return fail("store", err)
	}

	doc := &storage.DocumentRecord{
		CollectionID: coll.ID,
		SourceID:     sourceID,
		Path:         path,
		Hash:         fingerprint,
		Pages:        len(pages),
		ChunkCount:   len(chunks),
		ParsedBy:     chunks[0].ParsedBy,
	}
	if err := p.documents.Upsert(ctx, doc); err != nil {
		p.rollback(ctx, coll.ID, index, sourceID)
		return fail("record", err)
	}

	result.Chunks = len(chunks)
	logger.InfoContext(ctx, "indexed document", "source", sourceID, "pages", len(pages), "chunks", len(chunks))
	return result, nil
}

// evict removes every stored chunk of sourceID from the index and SQLite.
func (p *Pipeline) evict(ctx context.Context, collectionID int, index, sourceID string) error {
	if err := p.vectorStore.DeleteBySource(ctx, index, sourceID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := p.chunkRepo.DeleteBySource(ctx, collectionID, sourceID); err != nil {
		return fmt.Errorf("delete chunk records: %w", err)
	}
	if err := p.documents.Delete(ctx, collectionID, sourceID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	return nil
}

// rollback evicts a partially written source. It runs on a context that survives
// cancellation of the request so a cancelled ingest does not leave half a document.
func (p *Pipeline) rollback(ctx context.Context, collectionID int, index, sourceID string) {
	if err := p.evict(context.WithoutCancel(ctx), collectionID, index, sourceID); err != nil {
		p.getLogger(ctx).ErrorContext(ctx, "failed to evict partially ingested document", "source", sourceID, "error", err)
	}
}

// IngestAll ingests paths into the collection key, up to Workers documents at a time.
// A failing document does not stop the others; the returned error joins every
// per-document failure.
func (p *Pipeline) IngestAll(ctx context.Context, key string, paths []string, opts Options) (Report, error) {
	logger := p.getLogger(ctx)
	logger.InfoContext(ctx, "starting ingestion", "collection", key, "total_files", len(paths))

	results := make([]DocumentResult, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = DocumentResult{Path: path, SourceID: filepath.Base(path), Error: err.Error()}
				errs[i] = err
				return nil
			}
			results[i], errs[i] = p.IngestDocument(ctx, key, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Collection: key, Documents: results}
	for _, err := range errs {
		if err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}

	logger.InfoContext(ctx, "ingestion completed", "collection", key, "total_files", len(paths),
		"success", report.Succeeded, "errors", report.Failed)
	return report, errors.Join(errs...)
}

// DeleteCollection drops the vector index and every SQLite record of the collection.
func (p *Pipeline) DeleteCollection(ctx context.Context, key string) error {
	if err := p.vectorStore.DropCollection(ctx, p.IndexName(key)); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := p.collections.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete collection records: %w", err)
	}
	p.getLogger(ctx).InfoContext(ctx, "collection deleted", "collection", key)
	return nil
}

// GetChunk returns one stored chunk of the collection.
func (p *Pipeline) GetChunk(ctx context.Context, key, chunkID string) (*storage.ChunkRecord, error) {
	coll, err := p.collections.GetByName(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.chunkRepo.GetByID(ctx, coll.ID, chunkID)
}

// SourceText returns the stored chunk texts of one source in document order,
// one chunk per line. It returns storage.ErrNotFound when the source has no chunks.
func (p *Pipeline) SourceText(ctx context.Context, key, sourceID string) (string, error) {
	coll, err := p.collections.GetByName(ctx, key)
	if err != nil {
		return "", err
	}
	chunks, err := p.chunkRepo.ListBySource(ctx, coll.ID, sourceID)
	if err != nil {
		return "", fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("source %s: %w", sourceID, storage.ErrNotFound)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n"), nil
}

// documentFingerprint identifies a file's content together with the options used to chunk it,
// so changing the window or threshold forces re-ingestion.
func documentFingerprint(content []byte, opts Options) string {
	h := sha256.New()
	h.Write(content)
	fmt.Fprintf(h, "|%d|%d|%g|%d|%d|%d|%s", opts.WindowSize, opts.Overlap,
		opts.Chunking.Percentile, opts.Chunking.BufferSize, opts.Chunking.MinChars,
		opts.Chunking.MaxChars, opts.Chunking.ParsedBy)
	return hex.EncodeToString(h.Sum(nil))
}

// estimateTokens approximates the token count from the rune count.
func estimateTokens(text string) int {
	n := int(math.Round(float64(utf8.RuneCountInString(text)) / TokensPerRune))
	if n < 1 {
		return 1
	}
	return n
}
