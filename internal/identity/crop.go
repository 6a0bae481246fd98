package identity

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/vitkovar/media-atlas/internal/encoder"
	"github.com/vitkovar/media-atlas/internal/media"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropFace cuts the detection box out of the image bytes and returns it
// re-encoded as JPEG.
func cropFace(data []byte, det encoder.Detection) ([]byte, error) {
	img, err := media.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	rect := image.Rect(int(det.BBox[0]), int(det.BBox[1]), int(det.BBox[2]), int(det.BBox[3]))
	rect = rect.Add(b.Min).Intersect(b)
	if rect.Dx() < 2 || rect.Dy() < 2 {
		return nil, fmt.Errorf("detection box outside image bounds")
	}

	var cropped image.Image
	if si, ok := img.(subImager); ok {
		cropped = si.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := 0; y < rect.Dy(); y++ {
			for x := 0; x < rect.Dx(); x++ {
				rgba.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
			}
		}
		cropped = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}
