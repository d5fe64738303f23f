package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"edurag/internal/contextutil"
)

// defaultGRPCPort is used when QDRANT_URL carries no port.
const defaultGRPCPort = 6334

// pointNamespace seeds the name-based UUIDs Qdrant requires as point IDs.
var pointNamespace = uuid.MustParse("6f1c54a2-5d0e-4b8f-9a57-3c2d8e91b7a4")

// PointUUID maps a chunk ID to the deterministic UUID used as its Qdrant point ID.
func PointUUID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// QdrantStore implements VectorStore on a Qdrant server. Each collection key
// maps to one Qdrant collection holding every chunk of that subject; the chunk
// ID travels in the payload because Qdrant only accepts UUID or integer IDs.
type QdrantStore struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrantStore connects to Qdrant. rawURL is the REST address
// ("http://localhost:6333"); the client talks gRPC on the next port up.
// An https scheme enables TLS. apiKey may be empty.
func NewQdrantStore(rawURL, apiKey string) (*QdrantStore, error) {
	cfg, err := clientConfig(rawURL)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = apiKey

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantStore{client: client, logger: slog.Default()}, nil
}

// clientConfig derives the gRPC endpoint from the REST URL.
func clientConfig(rawURL string) (*qdrant.Config, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	cfg := &qdrant.Config{
		Host:   u.Hostname(),
		Port:   defaultGRPCPort,
		UseTLS: u.Scheme == "https",
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if p := u.Port(); p != "" {
		restPort, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
		cfg.Port = restPort + 1
	}
	return cfg, nil
}

func (s *QdrantStore) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok {
		return ctxLogger
	}
	return s.logger
}

// EnsureCollection creates the collection with cosine distance, or checks the
// vector size of an existing one.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}
	logger := s.getLogger(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		actual, err := s.vectorSize(ctx, collection)
		if err != nil {
			return err
		}
		if actual != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, actual)
		}
		logger.DebugContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

// vectorSize reads the dense vector size from the collection config.
func (s *QdrantStore) vectorSize(ctx context.Context, collection string) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params.GetSize() == 0 {
		return 0, errors.New("could not determine collection vector size")
	}
	return int(params.GetSize()), nil
}

// CollectionExists reports whether the collection has been created.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Upsert writes points keyed by PointUUID of their chunk ID and waits for the
// write to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := qdrant.TryValueMap(withChunkID(p))
		if err != nil {
			return fmt.Errorf("point %s: invalid payload: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointUUID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vec...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		s.getLogger(ctx).ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	s.getLogger(ctx).DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

func withChunkID(p Point) map[string]any {
	meta := make(map[string]any, len(p.Meta)+1)
	for k, v := range p.Meta {
		meta[k] = v
	}
	meta[PayloadChunkID] = p.ID
	return meta
}

// Search queries the k nearest points. A collection that does not exist yields
// no results rather than an error.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be greater than 0")
	}
	logger := s.getLogger(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.InfoContext(ctx, "search on missing collection", "collection", collection)
		return nil, nil
	}

	filter, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, len(scored))
	for i, sp := range scored {
		results[i] = toSearchResult(sp)
	}
	sortResults(results)
	return results, nil
}

func toSearchResult(sp *qdrant.ScoredPoint) SearchResult {
	meta := payloadToMap(sp.GetPayload())
	id, _ := meta[PayloadChunkID].(string)
	if id == "" {
		id = sp.GetId().GetUuid()
	}
	return SearchResult{PointID: id, Score: sp.GetScore(), Meta: meta}
}

// buildFilter supports exact matches on source and page. Other keys are ignored.
func buildFilter(filters map[string]any) (*qdrant.Filter, error) {
	var must []*qdrant.Condition
	if source, ok := filters[PayloadSource]; ok {
		must = append(must, qdrant.NewMatch(PayloadSource, fmt.Sprint(source)))
	}
	if page, ok := filters[PayloadPage]; ok {
		n, err := pageNumber(page)
		if err != nil {
			return nil, err
		}
		must = append(must, qdrant.NewMatchInt(PayloadPage, n))
	}
	if len(must) == 0 {
		return nil, nil
	}
	return &qdrant.Filter{Must: must}, nil
}

func pageNumber(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid page filter %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("invalid page filter type %T", v)
	}
}

// DeleteBySource removes every point of one source document. A missing
// collection is a no-op.
func (s *QdrantStore) DeleteBySource(ctx context.Context, collection string, source string) error {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil || !exists {
		return err
	}
	selector := qdrant.NewPointsSelectorFilter(&qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(PayloadSource, source)},
	})
	if err := s.deletePoints(ctx, collection, selector); err != nil {
		return fmt.Errorf("failed to delete points for source %s: %w", source, err)
	}
	return nil
}

func (s *QdrantStore) deletePoints(ctx context.Context, collection string, selector *qdrant.PointsSelector) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         selector,
	})
	if err != nil {
		s.getLogger(ctx).ErrorContext(ctx, "failed to delete points", "collection", collection, "error", err)
	}
	return err
}

// DropCollection deletes the collection. A missing collection is a no-op.
func (s *QdrantStore) DropCollection(ctx context.Context, collection string) error {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil || !exists {
		return err
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	s.getLogger(ctx).InfoContext(ctx, "collection dropped", "collection", collection)
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// payloadToMap converts a Qdrant payload into plain Go values. Integers come
// back as int64 and floats as float64.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if v != nil {
			out[k] = plainValue(v)
		}
	}
	return out
}

func plainValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = plainValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
