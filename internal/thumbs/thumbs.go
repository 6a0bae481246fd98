// Package thumbs renders and stores small JPEG previews for catalog assets.
package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	maxEdge     = 250
	jpegQuality = 50
)

// Generator writes preview JPEGs into a flat thumbnail directory.
type Generator struct {
	dir string
}

// NewGenerator creates the thumbnail directory if needed.
func NewGenerator(dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbs dir: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Name derives the flat thumbnail filename for a library-relative path.
// Separators and dots collapse to underscores so every asset maps to a
// unique, filesystem-safe name.
func Name(relPath string) string {
	s := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_").Replace(relPath)
	return s + ".jpg"
}

// Exists reports whether the thumbnail file is present on disk.
func (g *Generator) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(g.dir, name))
	return err == nil
}

// Render scales the image down to maxEdge and writes it as a JPEG.
// Returns the thumbnail name for storing on the asset.
func (g *Generator) Render(relPath string, img image.Image) (string, error) {
	name := Name(relPath)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxEdge || h > maxEdge {
		var nw, nh int
		if w > h {
			nw = maxEdge
			nh = h * maxEdge / w
		} else {
			nh = maxEdge
			nw = w * maxEdge / h
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dir, name), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return name, nil
}

// RenderBytes decodes raw image bytes (e.g. embedded cover art) and
// renders a thumbnail from them.
func (g *Generator) RenderBytes(relPath string, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode thumbnail source: %w", err)
	}
	return g.Render(relPath, img)
}

// Dir returns the directory thumbnails are written into.
func (g *Generator) Dir() string {
	return g.dir
}
