// Package encoder wraps the external embedding and face detection
// services behind small capability interfaces so the pipeline can be
// tested with doubles.
package encoder

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitkovar/media-atlas/internal/config"
)

// Encoder maps media and text to comparable vectors in one semantic space.
type Encoder interface {
	// EmbedImage returns the vector for an encoded image (or crop).
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
	// EmbedText returns the vector for a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts returns one vector per input string.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Detection is one face bounding box with its confidence score.
type Detection struct {
	// BBox is [x1, y1, x2, y2] in pixel coordinates.
	BBox  [4]float64 `json:"bbox"`
	Score float64    `json:"score"`
}

// FaceDetector finds faces in an encoded image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]Detection, error)
}

// NewFromConfig builds the encoder stack. Images always go through the
// sidecar; TEXT_PROVIDER switches only the text path.
func NewFromConfig(cfg *config.EncoderConfig) (Encoder, FaceDetector, error) {
	client := NewClient(cfg.URL)

	switch strings.ToLower(cfg.TextProvider) {
	case "", "sidecar":
		return client, client, nil
	case "ollama":
		return NewOllamaEncoder(client, cfg.OllamaURL, cfg.OllamaModel), client, nil
	case "openai":
		if cfg.OpenAIToken == "" {
			return nil, nil, fmt.Errorf("OPENAI_TOKEN is required for the openai text provider")
		}
		return NewOpenAIEncoder(client, cfg.OpenAIToken), client, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini text provider")
		}
		enc, err := NewGeminiEncoder(client, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return enc, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown text provider %q", cfg.TextProvider)
	}
}
