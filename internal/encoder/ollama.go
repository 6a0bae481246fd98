package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// OllamaEncoder routes text embedding through a local Ollama instance.
// Images still go to the sidecar. The Ollama model must serve the same
// vector space as the sidecar's image path.
type OllamaEncoder struct {
	*Client
	ollama *Client
	model  string
}

// NewOllamaEncoder creates an Ollama-backed text encoder.
func NewOllamaEncoder(sidecar *Client, baseURL, model string) *OllamaEncoder {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaEncoder{
		Client: sidecar,
		ollama: NewClient(baseURL),
		model:  model,
	}
}

// ollamaEmbedRequest represents a request to the Ollama embed API.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse represents a response from the Ollama embed API.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEncoder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := e.ollama.postJSON(ctx, "/api/embed", ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// EmbedText computes a text embedding via Ollama.
func (e *OllamaEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return vecs[0], nil
}

// EmbedTexts computes a batch of text embeddings via Ollama.
func (e *OllamaEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts)
}

// Model returns the Ollama model name being used.
func (e *OllamaEncoder) Model() string {
	return strings.TrimSpace(e.model)
}
