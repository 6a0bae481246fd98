// Package search ranks catalog assets against free-text queries by cosine
// similarity, with identity-aware query augmentation and adaptive
// thresholds. Internal failures yield an empty result set, never an
// error, so a browsing client stays alive under partial backend failure.
package search

import (
	"context"
	"log"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/encoder"
)

const (
	defaultThreshold  = 0.15
	identityThreshold = 0.22
	mercyThreshold    = 0.10
	audioMinScore     = 0.20

	imageCap = 500
	audioCap = 12

	recencyAudioCount = 6

	identityBlendWeight = 0.7
	textBlendWeight     = 0.3
)

// Result is one ranked row.
type Result struct {
	Path           string            `json:"path"`
	Score          float64           `json:"score"`
	Kind           catalog.Kind      `json:"kind"`
	Timestamp      int64             `json:"timestamp"`
	TimeConfidence float64           `json:"time_confidence"`
	TimeSource     string            `json:"time_source"`
	ThumbRef       string            `json:"thumb,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	X              *float64          `json:"x,omitempty"`
	Y              *float64          `json:"y,omitempty"`
	Z              *float64          `json:"z,omitempty"`
	ClusterID      *int              `json:"cluster_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Ranker scores assets against queries.
type Ranker struct {
	store catalog.Store
	enc   encoder.Encoder
}

func NewRanker(store catalog.Store, enc encoder.Encoder) *Ranker {
	return &Ranker{store: store, enc: enc}
}

// Search ranks assets for the query. A zero threshold selects the
// defaults; an explicit threshold overrides them for the image partition.
// Empty or wildcard queries return the recency feed.
func (r *Ranker) Search(ctx context.Context, query string, threshold float64) []Result {
	query = strings.TrimSpace(query)
	if query == "" || query == "*" {
		return r.recencyFeed(ctx)
	}

	queryVec, gated := r.queryVector(ctx, query)
	if queryVec == nil {
		return nil
	}

	imageThreshold := defaultThreshold
	if gated {
		imageThreshold = identityThreshold
	}
	if threshold > 0 {
		imageThreshold = threshold
	}

	tags := r.assetTags(ctx)

	images := r.rankPartition(ctx, catalog.KindImage, queryVec, imageThreshold, imageCap, tags)
	if len(images) == 0 && imageThreshold > mercyThreshold {
		// Adaptive fallback: zero hits at the primary threshold retries
		// once with the mercy threshold rather than returning nothing.
		log.Printf("search %q: no images at %.2f, retrying at %.2f", query, imageThreshold, mercyThreshold)
		images = r.rankPartition(ctx, catalog.KindImage, queryVec, mercyThreshold, imageCap, tags)
	}

	// Videos rank alongside images: they share the image vector space.
	videos := r.rankPartition(ctx, catalog.KindVideo, queryVec, imageThreshold, imageCap, tags)
	if len(videos) > 0 {
		images = mergeRanked(images, videos, imageCap)
	}

	audio := r.rankPartition(ctx, catalog.KindAudio, queryVec, audioMinScore, audioCap, tags)

	// Audio precedes images in the combined feed.
	return append(audio, images...)
}

// queryVector builds the query embedding, blending in an identity
// prototype when the query names a known identity. Returns nil on oracle
// failure (logged).
func (r *Ranker) queryVector(ctx context.Context, query string) ([]float32, bool) {
	textVec, err := r.enc.EmbedText(ctx, query)
	if err != nil {
		log.Printf("search: query embedding failed: %v", err)
		return nil, false
	}

	identities, err := r.store.ListIdentities(ctx)
	if err != nil {
		log.Printf("search: identity lookup failed: %v", err)
		return textVec, false
	}

	folded := foldName(query)
	for _, id := range identities {
		if id.Prototype == nil {
			continue
		}
		if !strings.Contains(folded, foldName(id.Name)) {
			continue
		}
		if blended := catalog.BlendVectors(id.Prototype, textVec, identityBlendWeight, textBlendWeight); blended != nil {
			log.Printf("search %q: augmented with identity %s", query, id.Name)
			return blended, true
		}
	}
	return textVec, false
}

// foldName lowercases and strips diacritics so "René" matches "rene".
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func (r *Ranker) rankPartition(ctx context.Context, kind catalog.Kind, queryVec []float32, threshold float64, limit int, tags map[string][]string) []Result {
	assets, err := r.store.ListAssets(ctx, catalog.AssetFilter{
		Kind:             kind,
		RequireEmbedding: true,
		ExcludeCaptured:  true,
	})
	if err != nil {
		log.Printf("search: listing %s assets failed: %v", kind, err)
		return nil
	}

	var results []Result
	for i := range assets {
		a := &assets[i]
		score := catalog.CosineSimilarity(queryVec, a.Embedding)
		if score < threshold {
			continue
		}
		results = append(results, toResult(a, score, tags))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// mergeRanked folds two already sorted partitions into one, re-sorted
// and capped.
func mergeRanked(a, b []Result, limit int) []Result {
	merged := append(a, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// recencyFeed returns the newest non-captured assets by best-known
// timestamp: up to imageCap images and videos plus a handful of audio,
// audio first.
func (r *Ranker) recencyFeed(ctx context.Context) []Result {
	tags := r.assetTags(ctx)

	assets, err := r.store.ListAssets(ctx, catalog.AssetFilter{
		RequireEmbedding: true,
		ExcludeCaptured:  true,
	})
	if err != nil {
		log.Printf("search: recency feed failed: %v", err)
		return nil
	}

	var visual, audio []Result
	for i := range assets {
		a := &assets[i]
		res := toResult(a, 0, tags)
		if a.Kind == catalog.KindAudio {
			audio = append(audio, res)
		} else {
			visual = append(visual, res)
		}
	}

	byNewest := func(rs []Result) {
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Timestamp > rs[j].Timestamp
		})
	}
	byNewest(visual)
	byNewest(audio)

	if len(visual) > imageCap {
		visual = visual[:imageCap]
	}
	if len(audio) > recencyAudioCount {
		audio = audio[:recencyAudioCount]
	}
	return append(audio, visual...)
}

func (r *Ranker) assetTags(ctx context.Context) map[string][]string {
	tags, err := r.store.AssetTags(ctx)
	if err != nil {
		log.Printf("search: tag lookup failed: %v", err)
		return nil
	}
	return tags
}

func toResult(a *catalog.Asset, score float64, tags map[string][]string) Result {
	return Result{
		Path:           a.Path,
		Score:          score,
		Kind:           a.Kind,
		Timestamp:      a.BestTimestamp(),
		TimeConfidence: a.TimeConfidence,
		TimeSource:     a.TimeSource,
		ThumbRef:       a.ThumbRef,
		Tags:           tags[a.Path],
		X:              a.X,
		Y:              a.Y,
		Z:              a.Z,
		ClusterID:      a.ClusterID,
		Metadata:       a.Metadata,
	}
}
