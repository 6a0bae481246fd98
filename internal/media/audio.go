package media

import (
	"bytes"

	"github.com/dhowden/tag"
)

// AudioInfo reads embedded tags (ID3/vorbis/MP4 atoms) from audio bytes.
// Returns timestamps (always mtime based, audio carries no capture time),
// metadata and any embedded cover art. Tag errors are not fatal; untagged
// files simply get empty metadata.
func AudioInfo(data []byte, mtimeUnix int64) (Timestamps, map[string]string, []byte) {
	meta := map[string]string{}
	ts := mtimeTimestamps(mtimeUnix)

	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return ts, meta, nil
	}

	if t := m.Title(); t != "" {
		meta["title"] = t
	}
	if a := m.Artist(); a != "" {
		meta["artist"] = a
	}
	if al := m.Album(); al != "" {
		meta["album"] = al
	}
	if g := m.Genre(); g != "" {
		meta["genre"] = g
	}

	var cover []byte
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		cover = pic.Data
	}

	return ts, meta, cover
}
