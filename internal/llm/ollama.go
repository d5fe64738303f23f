package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OllamaClient generates text with a local Ollama server's native API.
type OllamaClient struct {
	BaseURL string
	Model   string
	client  *http.Client
}

// NewOllamaClient creates a client for the Ollama server at baseURL, e.g. http://localhost:11434.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		client:  newHTTPClient(),
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate runs a non-streaming /api/generate request.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	var resp ollamaGenerateResponse
	req := ollamaGenerateRequest{Model: c.Model, Prompt: prompt}
	if err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/api/generate", "", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	return resp.Response, nil
}
