package llm

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// ModelLoader makes sure a model is present on an Ollama server before it is used.
type ModelLoader struct {
	baseURL string
	client  *http.Client
}

// NewModelLoader creates a loader for the Ollama server at baseURL.
func NewModelLoader(baseURL string) *ModelLoader {
	return &ModelLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// IsModelLoaded reports whether modelName is available locally. A name without a tag
// matches the ":latest" tag.
func (ml *ModelLoader) IsModelLoaded(ctx context.Context, modelName string) (bool, error) {
	var tags tagsResponse
	if err := doJSON(ctx, ml.client, http.MethodGet, ml.baseURL+"/api/tags", "", nil, &tags); err != nil {
		return false, fmt.Errorf("failed to list models: %w", err)
	}

	names := []string{modelName}
	if !strings.Contains(modelName, ":") {
		names = append(names, modelName+":latest")
	}
	for _, m := range tags.Models {
		if slices.Contains(names, m.Name) || slices.Contains(names, m.Model) {
			return true, nil
		}
	}
	return false, nil
}

// LoadModel pulls modelName unless it is already available. The pull is synchronous.
func (ml *ModelLoader) LoadModel(ctx context.Context, modelName string) error {
	loaded, err := ml.IsModelLoaded(ctx, modelName)
	if err != nil || loaded {
		return err
	}

	var resp pullResponse
	if err := doJSON(ctx, ml.client, http.MethodPost, ml.baseURL+"/api/pull", "", pullRequest{Name: modelName}, &resp); err != nil {
		return fmt.Errorf("failed to pull model %s: %w", modelName, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("model pull failed: %s", resp.Error)
	}
	if resp.Status != "success" {
		return fmt.Errorf("model pull ended with status %q", resp.Status)
	}
	return nil
}
