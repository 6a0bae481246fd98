// Package pipeline turns one discovered file into one persisted catalog row
// through a fixed sequence of stages. A stage failure drops the file and
// moves on; a partially populated row never reaches the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/encoder"
	"github.com/vitkovar/media-atlas/internal/media"
	"github.com/vitkovar/media-atlas/internal/thumbs"
)

const (
	faceMatchThreshold  = 0.65
	imageMatchThreshold = 0.45
	blendImageWeight    = 0.6
	blendTextWeight     = 0.4
)

// File is the mutable per-file context threaded through the stages.
type File struct {
	Path    string // library-relative, forward slashes
	AbsPath string
	Kind    catalog.Kind
	MTime   int64

	Data        []byte      // raw file bytes (images and audio)
	RepBytes    []byte      // representative image bytes used for embedding
	Image       image.Image // decoded, orientation-corrected representative
	ExtraFrames [][]byte    // extra video frames, identity matching only
	CoverArt    []byte      // embedded audio cover art

	Timestamps media.Timestamps
	Metadata   map[string]string
	Embedding  []float32
	ThumbRef   string
	Matches    []string // identity names recognized by face, linked at persist
}

type stage struct {
	name string
	run  func(ctx context.Context, f *File) error
}

// Pipeline executes the ingestion stages against a catalog store, an
// embedding oracle, and a face detector.
type Pipeline struct {
	store  catalog.Store
	enc    encoder.Encoder
	faces  encoder.FaceDetector
	thumbs *thumbs.Generator
}

func New(store catalog.Store, enc encoder.Encoder, faces encoder.FaceDetector, gen *thumbs.Generator) *Pipeline {
	return &Pipeline{
		store:  store,
		enc:    enc,
		faces:  faces,
		thumbs: gen,
	}
}

// Process runs every stage for one file. Returns true when a new row was
// persisted; a duplicate-path conflict drops the row silently and returns
// false with no error.
func (p *Pipeline) Process(ctx context.Context, root, relPath string, mtimeUnix int64) (bool, error) {
	f := &File{
		Path:     relPath,
		AbsPath:  filepath.Join(root, filepath.FromSlash(relPath)),
		MTime:    mtimeUnix,
		Metadata: map[string]string{},
	}

	stages := []stage{
		{"load", p.load},
		{"metadata", p.metadata},
		{"embed", p.embed},
		{"identify", p.identify},
		{"thumbnail", p.thumbnail},
	}
	for _, s := range stages {
		if err := s.run(ctx, f); err != nil {
			return false, fmt.Errorf("stage %s failed for %s: %w", s.name, relPath, err)
		}
	}

	persisted, err := p.persist(ctx, f)
	if err != nil {
		return false, fmt.Errorf("stage persist failed for %s: %w", relPath, err)
	}
	return persisted, nil
}

func (p *Pipeline) load(ctx context.Context, f *File) error {
	f.Kind = media.Classify(f.Path)

	switch f.Kind {
	case catalog.KindImage:
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		img, err := media.DecodeImage(data)
		if err != nil {
			return err
		}
		f.Data = data
		f.RepBytes = data
		f.Image = img

	case catalog.KindAudio:
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		f.Data = data

	case catalog.KindVideo:
		info, err := media.ProbeVideo(ctx, f.AbsPath)
		if err != nil {
			return err
		}
		frames, err := media.SampleFrames(ctx, f.AbsPath, info.Duration)
		if err != nil {
			return err
		}
		// Middle frame is the representative; the rest only feed
		// identity matching.
		mid := len(frames) / 2
		f.RepBytes = frames[mid]
		for i, frame := range frames {
			if i != mid {
				f.ExtraFrames = append(f.ExtraFrames, frame)
			}
		}
		img, err := media.DecodeImage(f.RepBytes)
		if err != nil {
			return err
		}
		f.Image = img
		f.Metadata["duration"] = fmt.Sprintf("%.1f", info.Duration)

	default:
		return fmt.Errorf("unsupported file type")
	}
	return nil
}

func (p *Pipeline) metadata(ctx context.Context, f *File) error {
	switch f.Kind {
	case catalog.KindImage:
		ts, meta := media.ImageInfo(f.Data, f.MTime)
		f.Timestamps = ts
		for k, v := range meta {
			f.Metadata[k] = v
		}
	case catalog.KindAudio:
		ts, meta, cover := media.AudioInfo(f.Data, f.MTime)
		f.Timestamps = ts
		f.CoverArt = cover
		for k, v := range meta {
			f.Metadata[k] = v
		}
	default:
		f.Timestamps = media.Timestamps{Inferred: f.MTime, Confidence: 0.1, Source: "os"}
	}

	sizeBytes := int64(len(f.Data))
	if sizeBytes == 0 {
		// Video bytes never leave ffmpeg; stat the file instead.
		if fi, err := os.Stat(f.AbsPath); err == nil {
			sizeBytes = fi.Size()
		}
	}
	f.Metadata["size_kb"] = fmt.Sprintf("%.2f", float64(sizeBytes)/1024)

	// EXIF dimensions when present, decoded bounds otherwise.
	if f.Image != nil && f.Metadata["width"] == "" {
		b := f.Image.Bounds()
		f.Metadata["width"] = strconv.Itoa(b.Dx())
		f.Metadata["height"] = strconv.Itoa(b.Dy())
	}
	return nil
}

func (p *Pipeline) embed(ctx context.Context, f *File) error {
	if f.Kind == catalog.KindAudio {
		// Cross-modal trick: embed a proxy text so audio lands in the
		// same vector space as images and text queries.
		vec, err := p.enc.EmbedText(ctx, audioProxyText(f))
		if err != nil {
			return err
		}
		f.Embedding = vec
		return nil
	}

	vec, err := p.enc.EmbedImage(ctx, f.RepBytes)
	if err != nil {
		return err
	}
	f.Embedding = vec
	return nil
}

// audioProxyText synthesizes the string embedded in place of audio content.
func audioProxyText(f *File) string {
	title := f.Metadata["title"]
	artist := f.Metadata["artist"]
	switch {
	case title != "" && artist != "":
		return title + " by " + artist
	case title != "":
		return title
	case artist != "":
		return artist
	default:
		base := filepath.Base(f.Path)
		return base[:len(base)-len(filepath.Ext(base))]
	}
}

func (p *Pipeline) thumbnail(ctx context.Context, f *File) error {
	// Best effort: a missing preview never blocks ingestion.
	var (
		name string
		err  error
	)
	switch {
	case f.Image != nil:
		name, err = p.thumbs.Render(f.Path, f.Image)
	case f.CoverArt != nil:
		name, err = p.thumbs.RenderBytes(f.Path, f.CoverArt)
	default:
		return nil
	}
	if err != nil {
		log.Printf("thumbnail failed for %s: %v", f.Path, err)
		return nil
	}
	f.ThumbRef = name
	return nil
}

func (p *Pipeline) persist(ctx context.Context, f *File) (bool, error) {
	a := &catalog.Asset{
		Path:           f.Path,
		Kind:           f.Kind,
		Embedding:      f.Embedding,
		TSReal:         f.Timestamps.Real,
		TSInferred:     f.Timestamps.Inferred,
		TimeConfidence: f.Timestamps.Confidence,
		TimeSource:     f.Timestamps.Source,
		Metadata:       f.Metadata,
		ThumbRef:       f.ThumbRef,
	}
	err := p.store.InsertAsset(ctx, a)
	if errors.Is(err, catalog.ErrConflict) {
		// Raced with a concurrent insert of the same path. The existing
		// row wins; this one is dropped.
		log.Printf("dropping duplicate row for %s", f.Path)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.applyMatches(ctx, f)
	return true, nil
}
