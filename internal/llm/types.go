package llm

import (
	"context"
	"fmt"
	"strings"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks edurag/internal/llm Generator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks edurag/internal/llm Embedder

// Generator turns a prompt into generated text. Every answering backend implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend identifies an answering backend.
type Backend int

const (
	BackendGroq Backend = iota + 1
	BackendGemini
	BackendOllama
)

var backendNames = map[Backend]string{
	BackendGroq:   "groq",
	BackendGemini: "gemini",
	BackendOllama: "ollama",
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// Backends returns every known backend in declaration order.
func Backends() []Backend {
	return []Backend{BackendGroq, BackendGemini, BackendOllama}
}

// ParseBackend maps a backend name to its Backend. Matching is case-insensitive.
func ParseBackend(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for b, n := range backendNames {
		if n == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output. Nil leaves the server default.
	Temperature *float32
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
