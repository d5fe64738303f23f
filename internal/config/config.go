package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend describes one answering backend.
type Backend struct {
	Name              string   `yaml:"name"`
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       *float32 `yaml:"temperature"`
	// APIKey is resolved from APIKeyEnv and never read from the file.
	APIKey string `yaml:"-"`
}

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string
	LogFormat string
	APIPort   string

	DBPath       string
	UploadsDir   string
	WatchUploads bool

	VectorBackend          string
	QdrantURL              string
	QdrantAPIKey           string
	QdrantVectorSize       int
	QdrantCollectionPrefix string

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingBatchSize int
	EmbeddingCacheSize int

	ChunkWindowSize    int
	ChunkOverlap       int
	SemanticPercentile float64
	SemanticBufferSize int
	MinChunkChars      int
	MaxChunkChars      int

	RetrievalTopK  int
	FeedbackBeta   float64
	IngestWorkers  int
	SummaryWorkers int

	LLMRequestsPerSecond float64
	DefaultBackend       string
	BackendsFile         string
	Backends             []Backend
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
// A missing backend credential is not an error here; the backend is reported
// unavailable when it is first used.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:              strings.ToLower(getEnv("LOG_FORMAT", "text")),
		APIPort:                getEnv("API_PORT", "9000"),
		DBPath:                 getEnv("DB_PATH", "./data/edurag.db"),
		UploadsDir:             getEnv("UPLOADS_DIR", "./data/uploads"),
		VectorBackend:          strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
		QdrantURL:              getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:           getEnv("QDRANT_API_KEY", ""),
		QdrantCollectionPrefix: getEnv("QDRANT_COLLECTION_PREFIX", "edurag_"),
		EmbeddingBaseURL:       getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName:     getEnv("EMBEDDING_MODEL_NAME", "BAAI/bge-base-en-v1.5"),
		EmbeddingAPIKey:        getEnv("EMBEDDING_API_KEY", ""),
		DefaultBackend:         strings.ToLower(getEnv("DEFAULT_BACKEND", "groq")),
		BackendsFile:           getEnv("BACKENDS_FILE", ""),
	}

	var err error
	if cfg.WatchUploads, err = getEnvBool("WATCH_UPLOADS", false); err != nil {
		return nil, err
	}

	// QDRANT_VECTOR_SIZE must match the output size of the embedding model.
	// Changing it requires re-creating every collection.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"EMBEDDING_BATCH_SIZE", 32, &cfg.EmbeddingBatchSize},
		{"EMBEDDING_CACHE_SIZE", 4096, &cfg.EmbeddingCacheSize},
		{"CHUNK_WINDOW_SIZE", 2000, &cfg.ChunkWindowSize},
		{"CHUNK_OVERLAP", 50, &cfg.ChunkOverlap},
		{"SEMANTIC_BUFFER_SIZE", 1, &cfg.SemanticBufferSize},
		{"MIN_CHUNK_CHARS", 10, &cfg.MinChunkChars},
		{"MAX_CHUNK_CHARS", 0, &cfg.MaxChunkChars},
		{"RETRIEVAL_TOP_K", 5, &cfg.RetrievalTopK},
		{"INGEST_WORKERS", 4, &cfg.IngestWorkers},
		{"SUMMARY_WORKERS", 2, &cfg.SummaryWorkers},
	}
	for _, v := range ints {
		if *v.dest, err = getEnvInt(v.key, v.def); err != nil {
			return nil, err
		}
	}

	floats := []struct {
		key  string
		def  float64
		dest *float64
	}{
		{"SEMANTIC_PERCENTILE", 95, &cfg.SemanticPercentile},
		{"FEEDBACK_BETA", 1.0, &cfg.FeedbackBeta},
		{"LLM_REQUESTS_PER_SECOND", 0, &cfg.LLMRequestsPerSecond},
	}
	for _, v := range floats {
		if *v.dest, err = getEnvFloat(v.key, v.def); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Backends = defaultBackends(cfg.LLMRequestsPerSecond)
	if cfg.BackendsFile != "" {
		overlay, err := LoadBackends(cfg.BackendsFile)
		if err != nil {
			return nil, err
		}
		cfg.Backends = mergeBackends(cfg.Backends, overlay)
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].APIKeyEnv != "" {
			cfg.Backends[i].APIKey = os.Getenv(cfg.Backends[i].APIKeyEnv)
		}
	}

	// Create ./data directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("VECTOR_BACKEND must be qdrant or memory, got %q", c.VectorBackend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.ChunkWindowSize <= 0 {
		return fmt.Errorf("CHUNK_WINDOW_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWindowSize {
		return fmt.Errorf("CHUNK_OVERLAP must be between 0 and CHUNK_WINDOW_SIZE-1")
	}
	if c.SemanticPercentile <= 0 || c.SemanticPercentile > 100 {
		return fmt.Errorf("SEMANTIC_PERCENTILE must be in (0, 100]")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be greater than 0")
	}
	if c.FeedbackBeta < 0 {
		return fmt.Errorf("FEEDBACK_BETA cannot be negative")
	}
	return nil
}

// defaultBackends builds the three backends from GROQ_*, GEMINI_* and OLLAMA_* variables.
func defaultBackends(rps float64) []Backend {
	return []Backend{
		{
			Name:              "groq",
			BaseURL:           getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:             getEnv("GROQ_MODEL", "llama3-8b-8192"),
			APIKeyEnv:         "GROQ_API_KEY",
			RequestsPerSecond: rps,
		},
		{
			Name:              "gemini",
			BaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			Model:             getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			APIKeyEnv:         "GEMINI_API_KEY",
			RequestsPerSecond: rps,
		},
		{
			Name:    "ollama",
			BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:   getEnv("OLLAMA_MODEL", "edusage"),
		},
	}
}

type backendsFile struct {
	Backends []Backend `yaml:"backends"`
}

// LoadBackends reads backend definitions from a YAML file:
//
//	backends:
//	  - name: groq
//	    model: llama-3.1-8b-instant
//	    api_key_env: GROQ_API_KEY
//	    requests_per_second: 0.5
func LoadBackends(path string) ([]Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backends file: %w", err)
	}
	var f backendsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse backends file %s: %w", path, err)
	}
	for i, b := range f.Backends {
		name := strings.ToLower(strings.TrimSpace(b.Name))
		if name == "" {
			return nil, fmt.Errorf("backends file %s: entry %d has no name", path, i)
		}
		if b.RequestsPerSecond < 0 {
			return nil, fmt.Errorf("backends file %s: %s requests_per_second cannot be negative", path, name)
		}
		f.Backends[i].Name = name
	}
	return f.Backends, nil
}

// mergeBackends overlays file entries onto the defaults by name. Empty fields in
// an overlay entry keep the default value.
func mergeBackends(defaults, overlay []Backend) []Backend {
	out := append([]Backend(nil), defaults...)
	for _, o := range overlay {
		idx := -1
		for i := range out {
			if out[i].Name == o.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, o)
			continue
		}
		b := &out[idx]
		if o.BaseURL != "" {
			b.BaseURL = o.BaseURL
		}
		if o.Model != "" {
			b.Model = o.Model
		}
		if o.APIKeyEnv != "" {
			b.APIKeyEnv = o.APIKeyEnv
		}
		if o.RequestsPerSecond > 0 {
			b.RequestsPerSecond = o.RequestsPerSecond
		}
		if o.MaxTokens > 0 {
			b.MaxTokens = o.MaxTokens
		}
		if o.Temperature != nil {
			b.Temperature = o.Temperature
		}
	}
	return out
}

// loadDotEnv loads .env from the current directory, then walks up to the project root.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
