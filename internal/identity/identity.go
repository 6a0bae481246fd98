// Package identity maintains named subjects and their prototype vectors.
// Prototypes are always recomputed from the full link set, never averaged
// incrementally, so repeated teaching cannot drift.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/encoder"
)

// Registry implements teaching, untagging, and identity management over
// the catalog store.
type Registry struct {
	store catalog.Store
	enc   encoder.Encoder
	faces encoder.FaceDetector
	root  string // library root, for reading anchor files
}

func NewRegistry(store catalog.Store, enc encoder.Encoder, faces encoder.FaceDetector, root string) *Registry {
	return &Registry{store: store, enc: enc, faces: faces, root: root}
}

// Teach creates or finds the named identity, links every anchor, and
// recomputes the prototype as the normalized mean of all linked assets'
// embeddings. The face prototype comes from the largest face in the first
// anchor, best effort: a detection failure keeps the previous one.
// An empty anchor list still creates the identity shell.
func (r *Registry) Teach(ctx context.Context, name string, anchorPaths []string) (*catalog.Identity, error) {
	id, err := r.store.UpsertIdentity(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert identity: %w", err)
	}
	if len(anchorPaths) == 0 {
		return id, nil
	}

	for _, p := range anchorPaths {
		if _, err := r.store.GetAsset(ctx, p); err != nil {
			return nil, fmt.Errorf("unknown anchor %s: %w", p, err)
		}
		if err := r.store.Link(ctx, name, p); err != nil {
			return nil, fmt.Errorf("failed to link %s: %w", p, err)
		}
	}

	if err := r.recompute(ctx, id); err != nil {
		return nil, err
	}

	if id.CoverPath == "" {
		id.CoverPath = anchorPaths[0]
	}
	if face := r.facePrototype(ctx, anchorPaths[0]); face != nil {
		id.FacePrototype = face
	}

	if err := r.store.SaveIdentity(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}
	return id, nil
}

// ClusterTag is the bulk teaching variant, identical semantics to Teach.
func (r *Registry) ClusterTag(ctx context.Context, name string, anchorPaths []string) (*catalog.Identity, error) {
	return r.Teach(ctx, name, anchorPaths)
}

// Untag removes one link and recounts. The prototype is deliberately left
// stale until the next teach: cheap untag over expensive recompute.
func (r *Registry) Untag(ctx context.Context, name, path string) error {
	id, err := r.store.GetIdentity(ctx, name)
	if err != nil {
		return err
	}
	if err := r.store.Unlink(ctx, name, path); err != nil {
		return err
	}
	n, err := r.store.CountLinks(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to recount links: %w", err)
	}
	id.Count = n
	return r.store.SaveIdentity(ctx, id)
}

// Delete removes the identity and all of its links.
func (r *Registry) Delete(ctx context.Context, name string) error {
	return r.store.DeleteIdentity(ctx, name)
}

// List returns all identities.
func (r *Registry) List(ctx context.Context) ([]catalog.Identity, error) {
	return r.store.ListIdentities(ctx)
}

// recompute rebuilds the prototype from every linked asset with an
// embedding and sets the count to the number of contributing rows.
func (r *Registry) recompute(ctx context.Context, id *catalog.Identity) error {
	links, err := r.store.ListLinks(ctx, id.Name)
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}

	var vectors [][]float32
	for _, p := range links {
		a, err := r.store.GetAsset(ctx, p)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if a.Embedding != nil {
			vectors = append(vectors, a.Embedding)
		}
	}

	id.Count = len(links)
	if len(vectors) == 0 {
		return nil
	}
	proto := catalog.MeanVector(vectors)
	catalog.NormalizeL2(proto)
	id.Prototype = proto
	return nil
}

// facePrototype detects the largest face in the anchor file, crops, and
// embeds it. Any failure returns nil and is only logged.
func (r *Registry) facePrototype(ctx context.Context, anchorPath string) []float32 {
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(anchorPath)))
	if err != nil {
		log.Printf("face prototype: cannot read %s: %v", anchorPath, err)
		return nil
	}

	detections, err := r.faces.DetectFaces(ctx, data)
	if err != nil || len(detections) == 0 {
		return nil
	}

	largest := detections[0]
	for _, d := range detections[1:] {
		if area(d) > area(largest) {
			largest = d
		}
	}

	crop, err := cropFace(data, largest)
	if err != nil {
		log.Printf("face prototype: crop failed for %s: %v", anchorPath, err)
		return nil
	}
	vec, err := r.enc.EmbedImage(ctx, crop)
	if err != nil {
		log.Printf("face prototype: embed failed for %s: %v", anchorPath, err)
		return nil
	}
	return vec
}

func area(d encoder.Detection) float64 {
	return (d.BBox[2] - d.BBox[0]) * (d.BBox[3] - d.BBox[1])
}
