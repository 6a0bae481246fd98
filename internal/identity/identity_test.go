package identity

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/catalog/memory"
	"github.com/vitkovar/media-atlas/internal/encoder"
)

type stubEncoder struct {
	vec []float32
}

func (s *stubEncoder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return append([]float32(nil), s.vec...), nil
}

func (s *stubEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return append([]float32(nil), s.vec...), nil
}

func (s *stubEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = append([]float32(nil), s.vec...)
	}
	return out, nil
}

type stubDetector struct {
	detections []encoder.Detection
}

func (s *stubDetector) DetectFaces(ctx context.Context, data []byte) ([]encoder.Detection, error) {
	return s.detections, nil
}

func seedAsset(t *testing.T, store catalog.Store, path string, vec []float32) {
	t.Helper()
	err := store.InsertAsset(context.Background(), &catalog.Asset{
		Path:      path,
		Kind:      catalog.KindImage,
		Embedding: vec,
	})
	if err != nil {
		t.Fatalf("seed asset %s: %v", path, err)
	}
}

func writeAnchorJPEG(t *testing.T, root, rel string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	img.Set(10, 10, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTeachBuildsNormalizedPrototype(t *testing.T) {
	root := t.TempDir()
	writeAnchorJPEG(t, root, "a.jpg")

	store := memory.NewStore()
	seedAsset(t, store, "a.jpg", []float32{2, 0, 0})
	seedAsset(t, store, "b.jpg", []float32{0, 2, 0})

	r := NewRegistry(store, &stubEncoder{vec: []float32{1, 0, 0}}, &stubDetector{}, root)
	id, err := r.Teach(context.Background(), "Alice", []string{"a.jpg", "b.jpg"})
	if err != nil {
		t.Fatalf("Teach failed: %v", err)
	}

	if id.Count != 2 {
		t.Errorf("count = %d, want 2", id.Count)
	}
	var norm float64
	for _, v := range id.Prototype {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("prototype not unit length: %v", id.Prototype)
	}
	if id.CoverPath != "a.jpg" {
		t.Errorf("cover = %q, want first anchor", id.CoverPath)
	}
}

func TestTeachEmptyAnchorsCreatesShell(t *testing.T) {
	store := memory.NewStore()
	r := NewRegistry(store, &stubEncoder{}, &stubDetector{}, t.TempDir())

	id, err := r.Teach(context.Background(), "Ghost", nil)
	if err != nil {
		t.Fatalf("Teach failed: %v", err)
	}
	if id.Count != 0 || id.Prototype != nil || id.FacePrototype != nil {
		t.Errorf("shell identity should be empty, got %+v", id)
	}

	if _, err := store.GetIdentity(context.Background(), "Ghost"); err != nil {
		t.Errorf("shell not stored: %v", err)
	}
}

func TestTeachUnknownAnchor(t *testing.T) {
	store := memory.NewStore()
	r := NewRegistry(store, &stubEncoder{}, &stubDetector{}, t.TempDir())

	if _, err := r.Teach(context.Background(), "Alice", []string{"nope.jpg"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected NotFound for unknown anchor, got %v", err)
	}
}

func TestTeachSetsFacePrototypeFromFirstAnchor(t *testing.T) {
	root := t.TempDir()
	writeAnchorJPEG(t, root, "a.jpg")

	store := memory.NewStore()
	seedAsset(t, store, "a.jpg", []float32{1, 0, 0})

	det := &stubDetector{detections: []encoder.Detection{
		{BBox: [4]float64{2, 2, 10, 10}, Score: 0.8},
		{BBox: [4]float64{20, 20, 60, 60}, Score: 0.9}, // largest wins
	}}
	r := NewRegistry(store, &stubEncoder{vec: []float32{0, 0, 1}}, det, root)

	id, err := r.Teach(context.Background(), "Alice", []string{"a.jpg"})
	if err != nil {
		t.Fatalf("Teach failed: %v", err)
	}
	if id.FacePrototype == nil {
		t.Fatal("face prototype not set")
	}
}

func TestTeachFaceFailureKeepsPreviousPrototype(t *testing.T) {
	root := t.TempDir()
	writeAnchorJPEG(t, root, "a.jpg")

	store := memory.NewStore()
	seedAsset(t, store, "a.jpg", []float32{1, 0, 0})
	if _, err := store.UpsertIdentity(context.Background(), "Alice"); err != nil {
		t.Fatal(err)
	}
	prev := []float32{0.5, 0.5, 0}
	if err := store.SaveIdentity(context.Background(), &catalog.Identity{
		Name:          "Alice",
		FacePrototype: prev,
	}); err != nil {
		t.Fatal(err)
	}

	// Detector finds nothing: the old face prototype must survive.
	r := NewRegistry(store, &stubEncoder{vec: []float32{1, 0, 0}}, &stubDetector{}, root)
	id, err := r.Teach(context.Background(), "Alice", []string{"a.jpg"})
	if err != nil {
		t.Fatalf("Teach failed: %v", err)
	}
	if len(id.FacePrototype) != len(prev) || id.FacePrototype[0] != prev[0] {
		t.Errorf("face prototype overwritten: %v", id.FacePrototype)
	}
}

func TestUntagLeavesPrototypeStale(t *testing.T) {
	root := t.TempDir()
	writeAnchorJPEG(t, root, "a.jpg")

	store := memory.NewStore()
	seedAsset(t, store, "a.jpg", []float32{1, 0, 0})
	seedAsset(t, store, "b.jpg", []float32{0, 1, 0})

	r := NewRegistry(store, &stubEncoder{vec: []float32{1, 0, 0}}, &stubDetector{}, root)
	taught, err := r.Teach(context.Background(), "Alice", []string{"a.jpg", "b.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Untag(context.Background(), "Alice", "b.jpg"); err != nil {
		t.Fatalf("Untag failed: %v", err)
	}

	id, err := store.GetIdentity(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if id.Count != 1 {
		t.Errorf("count after untag = %d, want 1", id.Count)
	}
	// Deliberately stale: recompute happens on the next teach only.
	for i := range taught.Prototype {
		if id.Prototype[i] != taught.Prototype[i] {
			t.Fatalf("prototype changed on untag: %v vs %v", id.Prototype, taught.Prototype)
		}
	}
}

func TestUntagUnknownIdentity(t *testing.T) {
	store := memory.NewStore()
	r := NewRegistry(store, &stubEncoder{}, &stubDetector{}, t.TempDir())

	if err := r.Untag(context.Background(), "Nobody", "a.jpg"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDeleteRemovesIdentityAndLinks(t *testing.T) {
	root := t.TempDir()
	writeAnchorJPEG(t, root, "a.jpg")

	store := memory.NewStore()
	seedAsset(t, store, "a.jpg", []float32{1, 0, 0})

	r := NewRegistry(store, &stubEncoder{vec: []float32{1, 0, 0}}, &stubDetector{}, root)
	if _, err := r.Teach(context.Background(), "Alice", []string{"a.jpg"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(context.Background(), "Alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetIdentity(context.Background(), "Alice"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("identity survived delete: %v", err)
	}
	tags, err := store.AssetTags(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tags["a.jpg"]) != 0 {
		t.Errorf("links survived delete: %v", tags)
	}
}
