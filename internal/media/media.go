// Package media classifies library files and extracts per-kind metadata:
// EXIF fields from images, ID3/vorbis tags from audio, stream info from video.
package media

import (
	"path/filepath"
	"strings"

	"github.com/vitkovar/media-atlas/internal/catalog"
)

var (
	imageExts = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
		".bmp":  true,
		".gif":  true,
	}
	audioExts = map[string]bool{
		".mp3":  true,
		".wav":  true,
		".flac": true,
		".m4a":  true,
		".ogg":  true,
	}
	videoExts = map[string]bool{
		".mp4":  true,
		".mov":  true,
		".avi":  true,
		".mkv":  true,
		".webm": true,
	}
)

// Classify maps a file path to a media kind by extension.
func Classify(path string) catalog.Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return catalog.KindImage
	case audioExts[ext]:
		return catalog.KindAudio
	case videoExts[ext]:
		return catalog.KindVideo
	default:
		return catalog.KindUnknown
	}
}

// Timestamps carries the real and inferred capture times resolved for a file.
// Real stays nil when no embedded capture time exists; Inferred always holds
// the best guess (falling back to filesystem mtime with low confidence).
type Timestamps struct {
	Real       *int64
	Inferred   int64
	Confidence float64
	Source     string
}

// mtimeTimestamps builds the low-confidence fallback from filesystem mtime.
func mtimeTimestamps(mtimeUnix int64) Timestamps {
	return Timestamps{
		Inferred:   mtimeUnix,
		Confidence: 0.1,
		Source:     "os",
	}
}
