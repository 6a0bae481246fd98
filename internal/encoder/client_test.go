package encoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/image" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			http.Error(w, "expected multipart", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(embeddingResponse{Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	// JPEG magic bytes so MIME sniffing kicks in.
	vec, err := c.EmbedImage(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3 dims, got %d", len(vec))
	}
}

func TestEmbedImageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.EmbedImage(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0}); err == nil {
		t.Error("expected error from failing sidecar")
	}
}

func TestEmbedTextEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.EmbedText(context.Background(), "sunset"); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestEmbedTexts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req["texts"]))
		for i := range out {
			out[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(embeddingsResponse{Dim: 2, Embeddings: out})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	vecs, err := c.EmbedTexts(context.Background(), []string{"beach", "forest", "city"})
	if err != nil {
		t.Fatalf("EmbedTexts failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Errorf("expected 3 embeddings, got %d", len(vecs))
	}
}

func TestDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/face" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(detectResponse{
			Count: 2,
			Faces: []Detection{
				{BBox: [4]float64{10, 10, 50, 60}, Score: 0.97},
				{BBox: [4]float64{100, 20, 140, 70}, Score: 0.81},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	faces, err := c.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0})
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].Score != 0.97 || faces[0].BBox[2] != 50 {
		t.Errorf("unexpected first face: %+v", faces[0])
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0, 0}, "image/gif"},
		{"too short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOllamaEncoderTextPath(t *testing.T) {
	sidecarCalls, ollamaCalls := 0, 0

	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sidecarCalls++
		json.NewEncoder(w).Encode(embeddingResponse{Dim: 2, Embedding: []float32{1, 0}})
	}))
	defer sidecar.Close()

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaCalls++
		if r.URL.Path != "/api/embed" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0, 1}}})
	}))
	defer ollama.Close()

	e := NewOllamaEncoder(NewClient(sidecar.URL), ollama.URL, "test-model")

	if _, err := e.EmbedText(context.Background(), "query"); err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if ollamaCalls != 1 || sidecarCalls != 0 {
		t.Errorf("text should go to ollama only: ollama=%d sidecar=%d", ollamaCalls, sidecarCalls)
	}

	if _, err := e.EmbedImage(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0}); err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if sidecarCalls != 1 {
		t.Errorf("images should go to the sidecar, calls=%d", sidecarCalls)
	}
}
