package catalog

import (
	"errors"
	"time"
)

// Kind classifies an asset by its media type.
type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates an unknown asset path or identity name.
	ErrNotFound = errors.New("catalog: not found")
	// ErrConflict indicates an insert for a path that already exists.
	ErrConflict = errors.New("catalog: already exists")
)

// Asset is one cataloged media file. The relative path from the library
// root (forward-slash normalized) is its only stable identity.
type Asset struct {
	Path      string
	Kind      Kind
	Embedding []float32 // nil excludes the asset from search and clustering

	TSReal         *int64 // capture time from EXIF, nil when unknown
	TSInferred     int64  // filesystem mtime, always set
	TimeConfidence float64
	TimeSource     string // "exif" or "os"

	Metadata map[string]string
	ThumbRef string // rendered preview name, empty if rendering failed

	// Spatial placement, set only after a projection run.
	X, Y, Z      *float64
	ClusterID    *int
	ClusterLabel string

	// Captured marks assets excluded from recency and search views.
	Captured bool

	CreatedAt time.Time
}

// BestTimestamp returns the capture time when known, the mtime otherwise.
func (a *Asset) BestTimestamp() int64 {
	if a.TSReal != nil {
		return *a.TSReal
	}
	return a.TSInferred
}

// HasCoordinates reports whether a projection run has placed the asset.
func (a *Asset) HasCoordinates() bool {
	return a.X != nil && a.Y != nil && a.Z != nil
}

// Identity is a named recognizable subject.
type Identity struct {
	Name          string
	Prototype     []float32 // unit-length mean of all linked assets, nil if no links
	FacePrototype []float32 // derived from a face crop of the cover asset, nil if never extracted
	Count         int       // denormalized number of active links
	CoverPath     string
}

// ClusterAssignment pairs a cluster id with its human-readable label.
type ClusterAssignment struct {
	ID    int
	Label string
}

// Coordinates is a 3D spatial placement produced by a projection run.
type Coordinates struct {
	X, Y, Z float64
}
