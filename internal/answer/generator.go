// Package answer turns gated retrieval results into a grounded answer with
// citations, or a refusal when nothing relevant was found.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama generation defaults.
const (
	DefaultLLMHost  = "http://localhost:11434"
	DefaultLLMModel = "qwen2.5:7b"
	DefaultTimeout  = 120 * time.Second
)

// Generator produces completion text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OllamaGenerator generates answers via Ollama's /api/generate endpoint.
type OllamaGenerator struct {
	client *http.Client
	host   string
	model  string
}

var _ Generator = (*OllamaGenerator)(nil)

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator for the given host and model.
// Empty values take the defaults.
func NewOllamaGenerator(host, model string, timeout time.Duration) *OllamaGenerator {
	if host == "" {
		host = DefaultLLMHost
	}
	if model == "" {
		model = DefaultLLMModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaGenerator{
		client: &http.Client{Timeout: timeout},
		host:   host,
		model:  model,
	}
}

// Generate runs a non-streaming completion.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := g.host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Response, nil
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string {
	return g.model
}
