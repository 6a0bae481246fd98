package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/catalog/memory"
	"github.com/vitkovar/media-atlas/internal/encoder"
	"github.com/vitkovar/media-atlas/internal/identity"
	"github.com/vitkovar/media-atlas/internal/pipeline"
	"github.com/vitkovar/media-atlas/internal/scanner"
	"github.com/vitkovar/media-atlas/internal/search"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

type testEncoder struct{}

func (testEncoder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (testEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (testEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type testDetector struct{}

func (testDetector) DetectFaces(ctx context.Context, data []byte) ([]encoder.Detection, error) {
	return nil, nil
}

// testDeps builds handler dependencies over an in-memory store.
func testDeps(t *testing.T) (*Deps, catalog.Store) {
	t.Helper()

	store := memory.NewStore()
	root := t.TempDir()
	thumbsDir := t.TempDir()

	gen, err := thumbs.NewGenerator(thumbsDir)
	if err != nil {
		t.Fatal(err)
	}
	pipe := pipeline.New(store, testEncoder{}, testDetector{}, gen)
	sc := scanner.New(root, nil, 16, store, pipe, gen)

	deps := &Deps{
		Store:      store,
		Reconciler: scanner.NewReconciler(sc, nil),
		Ranker:     search.NewRanker(store, testEncoder{}),
		Registry:   identity.NewRegistry(store, testEncoder{}, testDetector{}, root),
		ThumbsDir:  thumbsDir,
		LibraryDir: root,
	}
	return deps, store
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
}
