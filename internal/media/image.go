package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// DecodeImage decodes image bytes and applies the EXIF orientation so the
// pixels are upright regardless of how the camera stored them.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return applyOrientation(img, exifOrientation(data)), nil
}

// ImageInfo extracts timestamps and descriptive metadata from image bytes.
// EXIF capture time wins with full confidence; otherwise the filesystem
// mtime is used as a weak guess.
func ImageInfo(data []byte, mtimeUnix int64) (Timestamps, map[string]string) {
	meta := map[string]string{}
	ts := mtimeTimestamps(mtimeUnix)

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return ts, meta
	}

	if t, ok := exifTime(x, exif.DateTimeOriginal); ok {
		unix := t.Unix()
		ts = Timestamps{Real: &unix, Inferred: unix, Confidence: 1.0, Source: "exif"}
	} else if t, ok := exifTime(x, exif.DateTime); ok {
		unix := t.Unix()
		ts = Timestamps{Real: &unix, Inferred: unix, Confidence: 1.0, Source: "exif"}
	}

	for name, field := range map[string]exif.FieldName{
		"camera_make":  exif.Make,
		"camera_model": exif.Model,
	} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil && s != "" {
				meta[name] = s
			}
		}
	}
	if w, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := w.Int(0); err == nil {
			meta["width"] = strconv.Itoa(v)
		}
	}
	if h, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := h.Int(0); err == nil {
			meta["height"] = strconv.Itoa(v)
		}
	}

	return ts, meta
}

func exifTime(x *exif.Exif, field exif.FieldName) (time.Time, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return time.Time{}, false
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(exifTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation remaps pixels for EXIF orientations 2-8. Orientation 1
// (and anything unknown) returns the image untouched.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.RGBA
	if orientation >= 5 {
		// Orientations 5-8 swap the axes.
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch orientation {
			case 2: // mirror horizontal
				out.Set(w-1-x, y, c)
			case 3: // rotate 180
				out.Set(w-1-x, h-1-y, c)
			case 4: // mirror vertical
				out.Set(x, h-1-y, c)
			case 5: // transpose
				out.Set(y, x, c)
			case 6: // rotate 90 CW
				out.Set(h-1-y, x, c)
			case 7: // transverse
				out.Set(h-1-y, w-1-x, c)
			case 8: // rotate 270 CW
				out.Set(y, w-1-x, c)
			}
		}
	}
	return out
}
