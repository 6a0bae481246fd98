package thumbs

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"holiday/beach.jpg", "holiday_beach_jpg.jpg"},
		{"a b/c.png", "a_b_c_png.jpg"},
		{"song.mp3", "song_mp3.jpg"},
	}
	for _, tt := range tests {
		if got := Name(tt.path); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRenderScalesDown(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGenerator(dir)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	name, err := g.Render("big/photo.jpg", img)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !g.Exists(name) {
		t.Fatal("thumbnail file missing after render")
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read thumbnail: %v", err)
	}
	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not valid jpeg: %v", err)
	}
	b := thumb.Bounds()
	if b.Dx() != 250 || b.Dy() != 125 {
		t.Errorf("unexpected thumbnail size %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderSmallImageKeepsSize(t *testing.T) {
	g, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	name, err := g.Render("small.png", image.NewRGBA(image.Rect(0, 0, 100, 80)))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(g.Dir(), name))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("small image should keep its size, got %v", b)
	}
}

func TestRenderBytesGarbage(t *testing.T) {
	g, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	if _, err := g.RenderBytes("x.mp3", []byte("not an image")); err == nil {
		t.Error("expected error for undecodable cover art")
	}
}

func TestExistsMissing(t *testing.T) {
	g, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	if g.Exists("") || g.Exists("nope.jpg") {
		t.Error("Exists should be false for empty and missing names")
	}
}
