package projection

import (
	"math"
	"math/rand"
)

const kMeansIters = 25

// kMeans partitions the vectors into k clusters with Lloyd's algorithm,
// k-means++ seeded from a fixed source for reproducible runs. Returns the
// per-vector assignment and the cluster centroids.
func kMeans(vectors [][]float32, k int) ([]int, [][]float32) {
	n := len(vectors)
	if k > n {
		k = n
	}
	dim := len(vectors[0])
	rng := rand.New(rand.NewSource(42))

	centroids := seedCentroids(vectors, k, rng)
	assignment := make([]int, n)

	for iter := 0; iter < kMeansIters; iter++ {
		changed := false
		for i, v := range vectors {
			best := 0
			bestDist := math.MaxFloat64
			for c, cen := range centroids {
				if d := sqDist(v, cen); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignment[i]
			counts[c]++
			for j, x := range v {
				sums[c][j] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster: reseed on a random vector.
				centroids[c] = append([]float32(nil), vectors[rng.Intn(n)]...)
				continue
			}
			cen := make([]float32, dim)
			for j := range cen {
				cen[j] = float32(sums[c][j] / float64(counts[c]))
			}
			centroids[c] = cen
		}
	}
	return assignment, centroids
}

// seedCentroids picks initial centers k-means++ style: each next center
// is sampled proportionally to its squared distance from the chosen set.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, append([]float32(nil), vectors[rng.Intn(n)]...))

	dists := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := math.MaxFloat64
			for _, c := range centroids {
				if sd := sqDist(v, c); sd < d {
					d = sd
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All remaining vectors coincide with a center.
			centroids = append(centroids, append([]float32(nil), vectors[rng.Intn(n)]...))
			continue
		}
		target := rng.Float64() * total
		idx := 0
		for i, d := range dists {
			target -= d
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, append([]float32(nil), vectors[idx]...))
	}
	return centroids
}

func sqDist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
