package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIEncoder routes text embedding through the OpenAI embeddings
// API. Images still go to the sidecar; pair this with a sidecar that
// serves the matching vector space.
type OpenAIEncoder struct {
	*Client
	api *openai.Client
}

// NewOpenAIEncoder creates an OpenAI-backed text encoder.
func NewOpenAIEncoder(sidecar *Client, apiKey string) *OpenAIEncoder {
	api := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEncoder{
		Client: sidecar,
		api:    &api,
	}
}

func (e *OpenAIEncoder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openAIEmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			vec[j] = float32(x)
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedText computes a text embedding via OpenAI.
func (e *OpenAIEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return vecs[0], nil
}

// EmbedTexts computes a batch of text embeddings via OpenAI.
func (e *OpenAIEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts)
}
