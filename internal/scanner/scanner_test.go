package scanner

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/catalog/memory"
	"github.com/vitkovar/media-atlas/internal/encoder"
	"github.com/vitkovar/media-atlas/internal/pipeline"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

type fakeEncoder struct{}

func (fakeEncoder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 1}, nil
}

func (fakeEncoder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

type fakeDetector struct{}

func (fakeDetector) DetectFaces(ctx context.Context, data []byte) ([]encoder.Detection, error) {
	return nil, nil
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(3, 3, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestScanner(t *testing.T, root string, store catalog.Store) *Scanner {
	t.Helper()
	gen, err := thumbs.NewGenerator(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipe := pipeline.New(store, fakeEncoder{}, fakeDetector{}, gen)
	return New(root, []string{".thumbs"}, 16, store, pipe, gen)
}

func TestRunIngestsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))
	writeJPEG(t, filepath.Join(root, "sub", "b.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)

	persisted, err := s.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if persisted != 2 {
		t.Errorf("persisted = %d, want 2", persisted)
	}

	paths, err := store.ListAssetPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("catalog paths = %v", paths)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)

	if _, err := s.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	first, err := store.GetAsset(context.Background(), "a.jpg")
	if err != nil {
		t.Fatal(err)
	}

	persisted, err := s.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if persisted != 0 {
		t.Errorf("second pass persisted %d new assets, want 0", persisted)
	}
	second, err := store.GetAsset(context.Background(), "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("rescans must not recreate existing rows")
	}
}

func TestRunRemovesGhosts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.jpg")
	writeJPEG(t, path)

	store := memory.NewStore()
	s := newTestScanner(t, root, store)

	if _, err := s.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetAsset(context.Background(), "gone.jpg"); err != catalog.ErrNotFound {
		t.Errorf("ghost survived rescan: %v", err)
	}
}

func TestRunSkipsIgnoredAndHidden(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "keep.jpg"))
	writeJPEG(t, filepath.Join(root, ".thumbs", "skip.jpg"))
	writeJPEG(t, filepath.Join(root, ".hiddenphoto.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)

	if _, err := s.Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	paths, _ := store.ListAssetPaths(context.Background())
	if len(paths) != 1 || paths[0] != "keep.jpg" {
		t.Errorf("unexpected catalog contents: %v", paths)
	}
}

func TestOrderImagesFirst(t *testing.T) {
	files := []diskFile{
		{rel: "z.mp3"},
		{rel: "b.jpg"},
		{rel: "a.mp4"},
		{rel: "a.jpg"},
	}
	orderImagesFirst(files)
	want := []string{"a.jpg", "b.jpg", "a.mp4", "z.mp3"}
	for i, w := range want {
		if files[i].rel != w {
			t.Fatalf("order = %v, want %v", files, want)
		}
	}
}

func TestRunReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))
	writeJPEG(t, filepath.Join(root, "b.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)

	var calls []string
	_, err := s.Run(context.Background(), func(current, total int, last string) {
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
		calls = append(calls, last)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 {
		t.Errorf("progress calls = %v", calls)
	}
}

// blockingProjector lets tests observe projection kicks.
type countingProjector struct {
	runs chan struct{}
}

func (p *countingProjector) Run(ctx context.Context) error {
	p.runs <- struct{}{}
	return nil
}

func TestReconcilerSingleFlight(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)
	r := NewReconciler(s, nil)

	// Not started: the loop never picks up the wake, so the state stays
	// indexing after the first trigger.
	if got := r.Trigger(); got != TriggerAccepted {
		t.Fatalf("first trigger = %v", got)
	}
	if got := r.Trigger(); got != TriggerAlreadyRunning {
		t.Fatalf("second trigger = %v, want already-running", got)
	}
	if st := r.Status(); st.State != StateIndexing {
		t.Errorf("state = %v, want indexing", st.State)
	}
}

func TestReconcilerRunsAndReturnsToIdle(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)
	proj := &countingProjector{runs: make(chan struct{}, 2)}
	r := NewReconciler(s, proj)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	if got := r.Trigger(); got != TriggerAccepted {
		t.Fatalf("trigger = %v", got)
	}

	select {
	case <-proj.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("projection was not kicked after a persisting pass")
	}

	deadline := time.After(5 * time.Second)
	for r.Status().State != StateIdle {
		select {
		case <-deadline:
			t.Fatal("reconciler did not return to idle")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if n, _ := store.CountAssets(context.Background()); n != 1 {
		t.Errorf("catalog count = %d, want 1", n)
	}
}

func TestReconcilerDirtyRerun(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"))

	store := memory.NewStore()
	s := newTestScanner(t, root, store)
	r := NewReconciler(s, nil)

	// Mark dirty before the loop starts, then start it: the loop must
	// complete the first pass and immediately run a second one that
	// picks up the file added in between.
	if r.Trigger() != TriggerAccepted {
		t.Fatal("first trigger rejected")
	}
	if r.Trigger() != TriggerAlreadyRunning {
		t.Fatal("second trigger should mark dirty")
	}
	writeJPEG(t, filepath.Join(root, "b.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		if n, _ := store.CountAssets(context.Background()); n == 2 && r.Status().State == StateIdle {
			return
		}
		select {
		case <-deadline:
			n, _ := store.CountAssets(context.Background())
			t.Fatalf("dirty rerun incomplete: %d assets, state %v", n, r.Status().State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
