package encoder

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiEmbeddingModel = "gemini-embedding-001"

// GeminiEncoder routes text embedding through the Gemini API. Images
// still go to the sidecar; pair this with a sidecar that serves the
// matching vector space.
type GeminiEncoder struct {
	*Client
	api *genai.Client
}

// NewGeminiEncoder creates a Gemini-backed text encoder.
func NewGeminiEncoder(sidecar *Client, apiKey string) (*GeminiEncoder, error) {
	api, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiEncoder{
		Client: sidecar,
		api:    api,
	}, nil
}

func (e *GeminiEncoder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	resp, err := e.api.Models.EmbedContent(ctx, geminiEmbeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// EmbedText computes a text embedding via Gemini.
func (e *GeminiEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return vecs[0], nil
}

// EmbedTexts computes a batch of text embeddings via Gemini.
func (e *GeminiEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts)
}
