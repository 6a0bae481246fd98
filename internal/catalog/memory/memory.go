// Package memory provides an in-memory catalog store. It backs unit
// tests and serves as the default store when no DATABASE_URL is set.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitkovar/media-atlas/internal/catalog"
)

// Store is a mutex-guarded map implementation of catalog.Store.
type Store struct {
	mu         sync.RWMutex
	assets     map[string]*catalog.Asset
	identities map[string]*catalog.Identity
	links      map[string]map[string]struct{} // identity name -> asset paths
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		assets:     make(map[string]*catalog.Asset),
		identities: make(map[string]*catalog.Identity),
		links:      make(map[string]map[string]struct{}),
	}
}

func cloneAsset(a *catalog.Asset) *catalog.Asset {
	c := *a
	if a.Embedding != nil {
		c.Embedding = append([]float32(nil), a.Embedding...)
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	if a.TSReal != nil {
		ts := *a.TSReal
		c.TSReal = &ts
	}
	if a.X != nil {
		x, y, z := *a.X, *a.Y, *a.Z
		c.X, c.Y, c.Z = &x, &y, &z
	}
	if a.ClusterID != nil {
		id := *a.ClusterID
		c.ClusterID = &id
	}
	return &c
}

func cloneIdentity(id *catalog.Identity) *catalog.Identity {
	c := *id
	if id.Prototype != nil {
		c.Prototype = append([]float32(nil), id.Prototype...)
	}
	if id.FacePrototype != nil {
		c.FacePrototype = append([]float32(nil), id.FacePrototype...)
	}
	return &c
}

// InsertAsset stores a new asset, rejecting duplicate paths.
func (s *Store) InsertAsset(ctx context.Context, a *catalog.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.Path]; ok {
		return catalog.ErrConflict
	}
	c := cloneAsset(a)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.assets[a.Path] = c
	return nil
}

// DeleteAsset removes an asset row and any links pointing at it.
func (s *Store) DeleteAsset(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[path]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.assets, path)
	for _, paths := range s.links {
		delete(paths, path)
	}
	return nil
}

// GetAsset returns a copy of the asset for a path.
func (s *Store) GetAsset(ctx context.Context, path string) (*catalog.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[path]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneAsset(a), nil
}

// ListAssetPaths returns every cataloged path.
func (s *Store) ListAssetPaths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.assets))
	for p := range s.assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// ListAssets returns all assets matching the filter.
func (s *Store) ListAssets(ctx context.Context, f catalog.AssetFilter) ([]catalog.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Asset
	for _, a := range s.assets {
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.RequireEmbedding && len(a.Embedding) == 0 {
			continue
		}
		if f.ExcludeCaptured && a.Captured {
			continue
		}
		out = append(out, *cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SetThumb updates the thumbnail reference for an existing asset.
func (s *Store) SetThumb(ctx context.Context, path, thumbRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[path]
	if !ok {
		return catalog.ErrNotFound
	}
	a.ThumbRef = thumbRef
	return nil
}

// SetCoordinates persists projection coordinates for many assets.
func (s *Store) SetCoordinates(ctx context.Context, coords map[string]catalog.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, c := range coords {
		a, ok := s.assets[path]
		if !ok {
			continue
		}
		x, y, z := c.X, c.Y, c.Z
		a.X, a.Y, a.Z = &x, &y, &z
	}
	return nil
}

// SetClusters persists cluster assignments for many assets.
func (s *Store) SetClusters(ctx context.Context, clusters map[string]catalog.ClusterAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, c := range clusters {
		a, ok := s.assets[path]
		if !ok {
			continue
		}
		id := c.ID
		a.ClusterID = &id
		a.ClusterLabel = c.Label
	}
	return nil
}

// CountAssets returns the total number of asset rows.
func (s *Store) CountAssets(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets), nil
}

// CountByKind returns asset counts grouped by kind.
func (s *Store) CountByKind(ctx context.Context) (map[catalog.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[catalog.Kind]int)
	for _, a := range s.assets {
		counts[a.Kind]++
	}
	return counts, nil
}

// UpsertIdentity creates an identity shell if the name is new.
func (s *Store) UpsertIdentity(ctx context.Context, name string) (*catalog.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[name]
	if !ok {
		id = &catalog.Identity{Name: name}
		s.identities[name] = id
		s.links[name] = make(map[string]struct{})
	}
	return cloneIdentity(id), nil
}

// GetIdentity returns the identity for a name.
func (s *Store) GetIdentity(ctx context.Context, name string) (*catalog.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[name]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneIdentity(id), nil
}

// SaveIdentity replaces the stored identity row.
func (s *Store) SaveIdentity(ctx context.Context, id *catalog.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id.Name]; !ok {
		return catalog.ErrNotFound
	}
	s.identities[id.Name] = cloneIdentity(id)
	return nil
}

// DeleteIdentity removes an identity and all of its links.
func (s *Store) DeleteIdentity(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[name]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.identities, name)
	delete(s.links, name)
	return nil
}

// ListIdentities returns all identities sorted by name.
func (s *Store) ListIdentities(ctx context.Context) ([]catalog.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, *cloneIdentity(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Link associates an identity with an asset path. Both sides must
// already exist, matching the SQL store's foreign keys.
func (s *Store) Link(ctx context.Context, name, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, ok := s.links[name]
	if !ok {
		return catalog.ErrNotFound
	}
	if _, ok := s.assets[path]; !ok {
		return catalog.ErrNotFound
	}
	paths[path] = struct{}{}
	return nil
}

// Unlink removes a link.
func (s *Store) Unlink(ctx context.Context, name, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, ok := s.links[name]
	if !ok {
		return catalog.ErrNotFound
	}
	if _, ok := paths[path]; !ok {
		return catalog.ErrNotFound
	}
	delete(paths, path)
	return nil
}

// ListLinks returns the asset paths linked to an identity.
func (s *Store) ListLinks(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths, ok := s.links[name]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// CountLinks returns the number of active links for an identity.
func (s *Store) CountLinks(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths, ok := s.links[name]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	return len(paths), nil
}

// AssetTags returns identity names keyed by asset path.
func (s *Store) AssetTags(ctx context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make(map[string][]string)
	for name, paths := range s.links {
		for p := range paths {
			tags[p] = append(tags[p], name)
		}
	}
	for p := range tags {
		sort.Strings(tags[p])
	}
	return tags, nil
}
