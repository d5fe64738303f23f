package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edurag/internal/apperr"
)

func TestNewClient(t *testing.T) {
	client := NewClient("https://api.groq.com/openai/v1/", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("NewClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
	if client.APIKey != "test-key" {
		t.Errorf("NewClient() APIKey = %v, want test-key", client.APIKey)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.client == nil {
		t.Error("NewClient() client should not be nil")
	}
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    bool
	}{
		{
			name:   "successful generation",
			prompt: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer test-key" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				var req ChatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if req.Model != "test-model" || len(req.Messages) != 1 || req.Messages[0].Content != "Hello" {
					t.Errorf("unexpected request: %+v", req)
				}

				resp := ChatResponse{
					ID: "test-id",
					Choices: []ChatChoice{
						{
							Index:        0,
							Message:      Message{Role: "assistant", Content: "Hi there!"},
							FinishReason: "stop",
						},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantReply: "Hi there!",
		},
		{
			name:   "no choices returned",
			prompt: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{ID: "test-id", Choices: []ChatChoice{}})
			},
			wantErr: true,
		},
		{
			name:   "server error",
			prompt: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("rate limited"))
			},
			wantErr: true,
		},
		{
			name:   "malformed json",
			prompt: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL+"/v1", "test-key", "test-model")
			reply, err := client.Generate(context.Background(), tt.prompt)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Generate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if reply != tt.wantReply {
				t.Errorf("Generate() = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_ChatWithMessages_Params(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 256 {
			t.Errorf("MaxTokens = %d, want 256", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("Temperature = %v, want 0.2", req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "ok"}}}})
	}))
	defer server.Close()

	temp := float32(0.2)
	client := NewClient(server.URL, "k", "m")
	client.Params = ChatParams{MaxTokens: 256, Temperature: &temp}

	reply, err := client.ChatWithMessages(context.Background(), []Message{
		{Role: "system", Content: "You are a tutor."},
		{Role: "user", Content: "Explain inertia."},
	})
	if err != nil {
		t.Fatalf("ChatWithMessages() error = %v", err)
	}
	if reply != "ok" {
		t.Errorf("ChatWithMessages() = %q", reply)
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate, got %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Model != "llama3" {
			t.Errorf("Model = %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "Answer: " + req.Prompt})
	}))
	defer server.Close()

	reply, err := NewOllamaClient(server.URL, "llama3").Generate(context.Background(), "why?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "Answer: why?" {
		t.Errorf("Generate() = %q", reply)
	}
}

func TestOllamaClient_Generate_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "model not found"})
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, "missing").Generate(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("Generate() error = %v, want model not found", err)
	}
}

func TestModelLoader_LoadModel(t *testing.T) {
	var pulled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			if pulled {
				_, _ = w.Write([]byte(`{"models":[{"name":"mistral:latest"},{"name":"llama3:latest"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"models":[{"name":"mistral:latest"}]}`))
		case "/api/pull":
			var req pullRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Name != "llama3" {
				t.Errorf("pull name = %q", req.Name)
			}
			pulled = true
			_ = json.NewEncoder(w).Encode(pullResponse{Status: "success"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	loader := NewModelLoader(server.URL)

	loaded, err := loader.IsModelLoaded(context.Background(), "mistral")
	if err != nil || !loaded {
		t.Fatalf("IsModelLoaded(mistral) = %v, %v", loaded, err)
	}

	if err := loader.LoadModel(context.Background(), "llama3"); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if !pulled {
		t.Error("expected missing model to be pulled")
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		input   string
		want    Backend
		wantErr bool
	}{
		{input: "groq", want: BackendGroq},
		{input: " Gemini ", want: BackendGemini},
		{input: "OLLAMA", want: BackendOllama},
		{input: "openai", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if BackendGroq.String() != "groq" || Backend(42).String() != "backend(42)" {
		t.Error("unexpected Backend.String()")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry([]BackendConfig{
		{Backend: BackendGroq, BaseURL: "https://api.groq.com/openai/v1", Model: "llama3-8b-8192", APIKeyEnv: "GROQ_API_KEY"},
		{Backend: BackendGemini, BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", Model: "gemini-1.5-flash-latest", APIKey: "key"},
		{Backend: BackendOllama, BaseURL: "http://localhost:11434", Model: "llama3", RequestsPerSecond: 2},
	})

	_, err := reg.Generator(BackendGroq)
	var cfgErr *apperr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Generator(groq) error = %v, want ConfigurationError", err)
	}
	if cfgErr.Field != "GROQ_API_KEY" {
		t.Errorf("ConfigurationError.Field = %q", cfgErr.Field)
	}

	gen, err := reg.Generator(BackendGemini)
	if err != nil {
		t.Fatalf("Generator(gemini) error = %v", err)
	}
	if _, ok := gen.(*Client); !ok {
		t.Errorf("gemini generator is %T, want *Client", gen)
	}

	gen, err = reg.Generator(BackendOllama)
	if err != nil {
		t.Fatalf("Generator(ollama) error = %v", err)
	}
	if _, ok := gen.(*RateLimited); !ok {
		t.Errorf("ollama generator is %T, want *RateLimited", gen)
	}

	if got := reg.Available(); len(got) != 2 || got[0] != BackendGemini || got[1] != BackendOllama {
		t.Errorf("Available() = %v", got)
	}

	reg.Register(BackendGroq, GeneratorFunc(func(context.Context, string) (string, error) { return "x", nil }))
	if _, err := reg.Generator(BackendGroq); err != nil {
		t.Errorf("Generator(groq) after Register error = %v", err)
	}
}

func TestRateLimited_ContextCancelled(t *testing.T) {
	calls := 0
	gen := NewRateLimited(GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "ok", nil
	}), 0.001, 1)

	if _, err := gen.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, "second"); err == nil {
		t.Error("expected error when waiting with a cancelled context")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type countingEmbedder struct {
	calls [][]string
}

func (c *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)

	first, err := cached.EmbedTexts(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	second, err := cached.EmbedTexts(context.Background(), []string{"bb", "ccc", "a"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}

	if len(inner.calls) != 2 || len(inner.calls[1]) != 1 || inner.calls[1][0] != "ccc" {
		t.Errorf("upstream calls = %v, want only the uncached text on the second call", inner.calls)
	}
	if first[1][0] != 2 || second[0][0] != 2 || second[1][0] != 3 || second[2][0] != 1 {
		t.Errorf("unexpected vectors: %v %v", first, second)
	}

	second[0][0] = 99
	third, _ := cached.EmbedTexts(context.Background(), []string{"bb"})
	if third[0][0] != 2 {
		t.Error("cached vector was mutated through a returned slice")
	}
	if cached.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cached.Len())
	}
}
