package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"edurag/internal/apperr"
)

// BackendConfig describes how to reach one answering backend.
type BackendConfig struct {
	Backend           Backend
	BaseURL           string
	Model             string
	APIKey            string
	APIKeyEnv         string
	RequestsPerSecond float64
	Params            ChatParams
}

// Registry holds a Generator for every configured backend. A backend whose settings are
// incomplete is kept as a ConfigurationError so the remaining backends stay usable.
type Registry struct {
	generators map[Backend]Generator
	errs       map[Backend]error
	ollama     map[Backend]*ModelLoader
	models     map[Backend]string
}

// NewRegistry builds generators from cfgs.
func NewRegistry(cfgs []BackendConfig) *Registry {
	r := &Registry{
		generators: make(map[Backend]Generator),
		errs:       make(map[Backend]error),
		ollama:     make(map[Backend]*ModelLoader),
		models:     make(map[Backend]string),
	}
	for _, cfg := range cfgs {
		gen, err := r.build(cfg)
		if err != nil {
			r.errs[cfg.Backend] = err
			slog.Warn("backend unavailable", "backend", cfg.Backend.String(), "error", err)
			continue
		}
		r.generators[cfg.Backend] = gen
	}
	return r
}

func (r *Registry) build(cfg BackendConfig) (Generator, error) {
	name := cfg.Backend.String()
	if cfg.Model == "" {
		return nil, &apperr.ConfigurationError{Backend: name, Field: "model"}
	}
	if cfg.BaseURL == "" {
		return nil, &apperr.ConfigurationError{Backend: name, Field: "base_url"}
	}

	var gen Generator
	switch cfg.Backend {
	case BackendGroq, BackendGemini:
		if cfg.APIKey == "" {
			field := cfg.APIKeyEnv
			if field == "" {
				field = "api_key"
			}
			return nil, &apperr.ConfigurationError{Backend: name, Field: field}
		}
		client := NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
		client.Params = cfg.Params
		gen = client
	case BackendOllama:
		gen = NewOllamaClient(cfg.BaseURL, cfg.Model)
		r.ollama[cfg.Backend] = NewModelLoader(cfg.BaseURL)
		r.models[cfg.Backend] = cfg.Model
	default:
		return nil, fmt.Errorf("unknown backend %s", name)
	}

	if cfg.RequestsPerSecond > 0 {
		gen = NewRateLimited(gen, cfg.RequestsPerSecond, 1)
	}
	return gen, nil
}

// Register installs gen for b, replacing any earlier generator or configuration error.
func (r *Registry) Register(b Backend, gen Generator) {
	delete(r.errs, b)
	r.generators[b] = gen
}

// Generator returns the generator for b. For a backend that failed configuration the
// stored ConfigurationError is returned.
func (r *Registry) Generator(b Backend) (Generator, error) {
	if gen, ok := r.generators[b]; ok {
		return gen, nil
	}
	if err, ok := r.errs[b]; ok {
		return nil, err
	}
	return nil, &apperr.ConfigurationError{Backend: b.String(), Field: "backend"}
}

// Prepare readies b for use. Local backends pull their model if it is missing.
func (r *Registry) Prepare(ctx context.Context, b Backend) error {
	if _, err := r.Generator(b); err != nil {
		return err
	}
	loader, ok := r.ollama[b]
	if !ok {
		return nil
	}
	if err := loader.LoadModel(ctx, r.models[b]); err != nil {
		return &apperr.GenerationError{Backend: b.String(), Err: fmt.Errorf("prepare model: %w", err)}
	}
	return nil
}

// Available lists backends with a usable generator.
func (r *Registry) Available() []Backend {
	out := make([]Backend, 0, len(r.generators))
	for b := range r.generators {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
