// Package projection places embedded assets into a 3D space and groups
// them into labeled clusters. Runs after scan passes that persisted new
// assets; small catalogs are skipped because dimensionality reduction is
// unstable below a minimum population.
package projection

import (
	"context"
	"fmt"
	"log"

	"github.com/coder/hnsw"

	"github.com/vitkovar/media-atlas/internal/catalog"
	"github.com/vitkovar/media-atlas/internal/encoder"
)

const (
	minAssets    = 10
	displayScale = 8.0
	maxClusters  = 12
	maxNeighbors = 15
	refineIters  = 30
	refineStep   = 0.15
)

// Engine computes coordinates and cluster assignments for the catalog.
type Engine struct {
	store      catalog.Store
	enc        encoder.Encoder
	vocabulary []string
}

func New(store catalog.Store, enc encoder.Encoder, vocabulary []string) *Engine {
	return &Engine{store: store, enc: enc, vocabulary: vocabulary}
}

// Run executes one full projection pass: gather embedded assets, build a
// kNN graph, lay out 3D coordinates, cluster, label, persist. Failure of
// the whole pass is the caller's to log; assets keep their previous
// placement on error.
func (e *Engine) Run(ctx context.Context) error {
	assets, err := e.store.ListAssets(ctx, catalog.AssetFilter{RequireEmbedding: true})
	if err != nil {
		return fmt.Errorf("failed to gather embedded assets: %w", err)
	}
	if len(assets) < minAssets {
		log.Printf("projection skipped: %d embedded assets, need %d", len(assets), minAssets)
		return nil
	}

	vectors := make([][]float32, len(assets))
	for i := range assets {
		vectors[i] = assets[i].Embedding
	}

	neighbors := knnGraph(vectors)
	coords := layout3D(vectors, neighbors)

	coordUpdate := make(map[string]catalog.Coordinates, len(assets))
	for i, a := range assets {
		coordUpdate[a.Path] = catalog.Coordinates{
			X: coords[i][0] * displayScale,
			Y: coords[i][1] * displayScale,
			Z: coords[i][2] * displayScale,
		}
	}
	if err := e.store.SetCoordinates(ctx, coordUpdate); err != nil {
		return fmt.Errorf("failed to persist coordinates: %w", err)
	}

	k := len(assets) / 20
	if k > maxClusters {
		k = maxClusters
	}
	if k < 2 {
		k = 2
	}
	assignment, centroids := kMeans(vectors, k)

	labels, err := e.labelCentroids(ctx, centroids)
	if err != nil {
		return fmt.Errorf("failed to label clusters: %w", err)
	}

	clusterUpdate := make(map[string]catalog.ClusterAssignment, len(assets))
	for i, a := range assets {
		c := assignment[i]
		clusterUpdate[a.Path] = catalog.ClusterAssignment{ID: c, Label: labels[c]}
	}
	if err := e.store.SetClusters(ctx, clusterUpdate); err != nil {
		return fmt.Errorf("failed to persist clusters: %w", err)
	}

	log.Printf("projection placed %d assets into %d clusters", len(assets), k)
	return nil
}

// knnGraph finds each vector's nearest neighbors through an in-memory
// HNSW graph with cosine distance. Neighborhood size is capped at n-1.
func knnGraph(vectors [][]float32) [][]int {
	n := len(vectors)
	k := maxNeighbors
	if k > n-1 {
		k = n - 1
	}

	g := hnsw.NewGraph[int]()
	g.M = 16
	g.Ml = 1.0 / 16.0
	g.Distance = hnsw.CosineDistance
	for i, v := range vectors {
		g.Add(hnsw.MakeNode(i, v))
	}

	neighbors := make([][]int, n)
	for i, v := range vectors {
		// Ask for one extra since the node finds itself.
		found := g.Search(v, k+1)
		for _, node := range found {
			if node.Key == i {
				continue
			}
			neighbors[i] = append(neighbors[i], node.Key)
			if len(neighbors[i]) == k {
				break
			}
		}
	}
	return neighbors
}

// labelCentroids embeds the vocabulary phrases through the oracle's text
// path and assigns each centroid the closest phrase.
func (e *Engine) labelCentroids(ctx context.Context, centroids [][]float32) ([]string, error) {
	if len(e.vocabulary) == 0 {
		return make([]string, len(centroids)), nil
	}
	phraseVecs, err := e.enc.EmbedTexts(ctx, e.vocabulary)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(centroids))
	for ci, c := range centroids {
		best := -1
		bestScore := -2.0
		for pi, pv := range phraseVecs {
			if s := catalog.CosineSimilarity(c, pv); s > bestScore {
				best = pi
				bestScore = s
			}
		}
		if best >= 0 {
			labels[ci] = e.vocabulary[best]
		}
	}
	return labels, nil
}
