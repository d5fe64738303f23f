package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Client talks to an OpenAI-compatible chat completions API (Groq, Gemini's OpenAI endpoint).
// BaseURL includes the API version prefix, e.g. https://api.groq.com/openai/v1.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	Params  ChatParams
	client  *http.Client
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client:  newHTTPClient(),
	}
}

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the chat completions response body.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.ChatWithMessages(ctx, []Message{{Role: "user", Content: prompt}})
}

// ChatWithMessages sends a chat completion request and returns the first choice's content.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message) (string, error) {
	req := ChatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   c.Params.MaxTokens,
		Temperature: c.Params.Temperature,
	}
	var resp ChatResponse
	if err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/chat/completions", c.APIKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
