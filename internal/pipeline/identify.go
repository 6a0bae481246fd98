package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"strconv"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/encoder"
)

// identify runs face detection over the representative image (plus extra
// video frames), records which identities' face prototypes match, and
// biases the primary vector toward identities recognized on the whole
// image. The recorded matches become links only after the asset row is
// durable; identify itself never writes to the store.
func (p *Pipeline) identify(ctx context.Context, f *File) error {
	if f.Kind != catalog.KindImage && f.Kind != catalog.KindVideo {
		return nil
	}

	identities, err := p.store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	linked := map[string]bool{}
	faces := 0

	inputs := append([][]byte{f.RepBytes}, f.ExtraFrames...)
	for _, input := range inputs {
		n, err := p.matchFaces(ctx, f, input, identities, linked)
		if err != nil {
			// Face matching is advisory; a detector hiccup on one frame
			// should not drop the whole file.
			log.Printf("face match failed for %s: %v", f.Path, err)
		}
		faces += n
	}
	f.Metadata["face_count"] = strconv.Itoa(faces)

	p.biasTowardMatch(ctx, f, identities)
	return nil
}

func (p *Pipeline) matchFaces(ctx context.Context, f *File, input []byte, identities []catalog.Identity, linked map[string]bool) (int, error) {
	detections, err := p.faces.DetectFaces(ctx, input)
	if err != nil {
		return 0, err
	}
	if len(detections) == 0 || !anyFacePrototype(identities) {
		return len(detections), nil
	}

	img, err := decodeInput(f, input)
	if err != nil {
		return len(detections), err
	}

	for _, det := range detections {
		crop, err := cropRegion(img, det)
		if err != nil {
			continue
		}
		faceVec, err := p.enc.EmbedImage(ctx, crop)
		if err != nil {
			return len(detections), err
		}

		for i := range identities {
			id := &identities[i]
			if id.FacePrototype == nil || linked[id.Name] {
				continue
			}
			if catalog.CosineSimilarity(faceVec, id.FacePrototype) < faceMatchThreshold {
				continue
			}
			f.Matches = append(f.Matches, id.Name)
			linked[id.Name] = true
		}
	}
	return len(detections), nil
}

func anyFacePrototype(identities []catalog.Identity) bool {
	for _, id := range identities {
		if id.FacePrototype != nil {
			return true
		}
	}
	return false
}

// applyMatches writes the links recorded by the identify stage. Runs only
// after InsertAsset succeeds so a link never references a row that does
// not exist; a failed link write loses one tag, never the asset.
func (p *Pipeline) applyMatches(ctx context.Context, f *File) {
	for _, name := range f.Matches {
		if err := p.store.Link(ctx, name, f.Path); err != nil {
			log.Printf("failed to link %s to %s: %v", name, f.Path, err)
			continue
		}
		id, err := p.store.GetIdentity(ctx, name)
		if err != nil {
			log.Printf("failed to load identity %s: %v", name, err)
			continue
		}
		n, err := p.store.CountLinks(ctx, name)
		if err != nil {
			log.Printf("failed to count links for %s: %v", name, err)
			continue
		}
		id.Count = n
		if err := p.store.SaveIdentity(ctx, id); err != nil {
			log.Printf("failed to save identity %s: %v", name, err)
			continue
		}
		log.Printf("recognized %s in %s", name, f.Path)
	}
}

// biasTowardMatch blends the stored vector toward a text description of
// the best whole-image identity match. Searches for that name then rank
// the asset higher, at the cost of slightly distorting generic similarity.
func (p *Pipeline) biasTowardMatch(ctx context.Context, f *File, identities []catalog.Identity) {
	var (
		best      string
		bestScore = imageMatchThreshold
	)
	for _, id := range identities {
		if id.Prototype == nil {
			continue
		}
		if s := catalog.CosineSimilarity(f.Embedding, id.Prototype); s >= bestScore {
			best = id.Name
			bestScore = s
		}
	}
	if best == "" {
		return
	}

	textVec, err := p.enc.EmbedText(ctx, "a photo of "+best)
	if err != nil {
		log.Printf("bias embedding failed for %s: %v", f.Path, err)
		return
	}
	if blended := catalog.BlendVectors(f.Embedding, textVec, blendImageWeight, blendTextWeight); blended != nil {
		f.Embedding = blended
	}
}

// decodeInput reuses the already decoded representative image and decodes
// extra frames on demand.
func decodeInput(f *File, input []byte) (image.Image, error) {
	if bytes.Equal(input, f.RepBytes) && f.Image != nil {
		return f.Image, nil
	}
	img, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropRegion cuts the detection box out of the image and re-encodes it as
// JPEG for the embedding oracle.
func cropRegion(img image.Image, det encoder.Detection) ([]byte, error) {
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
