// Package scanner discovers filesystem changes under the library root and
// drives them through the asset pipeline, exactly once per pass.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/media"
	"github.com/vitkovar/media-atlas/internal/pipeline"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

// Progress reports per-file advancement of a scan pass.
type Progress func(current, total int, lastFile string)

// Scanner walks the library root, diffs it against the catalog, and feeds
// new files to the pipeline in batches.
type Scanner struct {
	root      string
	ignore    map[string]bool
	batchSize int
	store     catalog.Store
	pipe      *pipeline.Pipeline
	thumbs    *thumbs.Generator
}

func New(root string, ignoreDirs []string, batchSize int, store catalog.Store, pipe *pipeline.Pipeline, gen *thumbs.Generator) *Scanner {
	ig := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ig[d] = true
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Scanner{
		root:      root,
		ignore:    ig,
		batchSize: batchSize,
		store:     store,
		pipe:      pipe,
		thumbs:    gen,
	}
}

type diskFile struct {
	rel   string
	mtime int64
}

// walk lists every candidate media file under the root, as forward-slash
// relative paths. Ignored directories and hidden files are skipped.
func (s *Scanner) walk() ([]diskFile, error) {
	var files []diskFile
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.root && (s.ignore[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			// File vanished mid-walk; the next pass catches it.
			return nil
		}
		files = append(files, diskFile{
			rel:   filepath.ToSlash(rel),
			mtime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk library root: %w", err)
	}
	return files, nil
}

// Run executes one full scan pass: ghost cleanup, missing-thumbnail
// regeneration, then pipeline ingestion of new files in batches with
// images ordered first. Returns how many assets were persisted.
func (s *Scanner) Run(ctx context.Context, progress Progress) (int, error) {
	disk, err := s.walk()
	if err != nil {
		return 0, err
	}
	onDisk := make(map[string]diskFile, len(disk))
	for _, f := range disk {
		onDisk[f.rel] = f
	}

	known, err := s.store.ListAssetPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog paths: %w", err)
	}
	inCatalog := make(map[string]bool, len(known))
	for _, p := range known {
		inCatalog[p] = true
	}

	// Ghosts: cataloged paths whose backing file no longer exists.
	for _, p := range known {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := s.store.DeleteAsset(ctx, p); err != nil {
			log.Printf("ghost cleanup failed for %s: %v", p, err)
			continue
		}
		log.Printf("removed ghost %s", p)
	}

	s.regenerateThumbs(ctx, onDisk)

	var fresh []diskFile
	for _, f := range disk {
		if !inCatalog[f.rel] {
			fresh = append(fresh, f)
		}
	}
	orderImagesFirst(fresh)

	total := len(fresh)
	persisted := 0
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		for i, f := range fresh[start:end] {
			if ctx.Err() != nil {
				return persisted, ctx.Err()
			}
			ok, err := s.pipe.Process(ctx, s.root, f.rel, f.mtime)
			if err != nil {
				log.Printf("skipping %s: %v", f.rel, err)
			} else if ok {
				persisted++
			}
			if progress != nil {
				progress(start+i+1, total, f.rel)
			}
		}
	}
	return persisted, nil
}

// orderImagesFirst sorts pending files images first, then the rest, with
// stable path order inside each group.
func orderImagesFirst(files []diskFile) {
	sort.SliceStable(files, func(i, j int) bool {
		ki := media.Classify(files[i].rel) == catalog.KindImage
		kj := media.Classify(files[j].rel) == catalog.KindImage
		if ki != kj {
			return ki
		}
		return files[i].rel < files[j].rel
	})
}

// regenerateThumbs re-renders previews for cataloged assets whose thumb
// file went missing. Best effort all the way down.
func (s *Scanner) regenerateThumbs(ctx context.Context, onDisk map[string]diskFile) {
	assets, err := s.store.ListAssets(ctx, catalog.AssetFilter{Kind: catalog.KindImage})
	if err != nil {
		log.Printf("thumb regeneration skipped: %v", err)
		return
	}
	for _, a := range assets {
		if a.ThumbRef != "" && s.thumbs.Exists(a.ThumbRef) {
			continue
		}
		if _, ok := onDisk[a.Path]; !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(a.Path)))
		if err != nil {
			continue
		}
		img, err := media.DecodeImage(data)
		if err != nil {
			continue
		}
		name, err := s.thumbs.Render(a.Path, img)
		if err != nil {
			continue
		}
		if err := s.store.SetThumb(ctx, a.Path, name); err != nil {
			log.Printf("failed to record regenerated thumb for %s: %v", a.Path, err)
		}
	}
}
