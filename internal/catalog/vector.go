package catalog

import "math"

// normEpsilon guards against dividing by a zero-length vector.
const normEpsilon = 1e-10

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths, empty input, or zero vectors.
// The result is clamped to [-1, 1] to absorb floating point error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// NormalizeL2 scales the vector to unit length in place and returns it.
// Vectors shorter than the epsilon guard are returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm < normEpsilon {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// MeanVector averages a non-empty set of equal-length vectors.
// Returns nil for empty input.
func MeanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(len(vecs)))
	}
	return mean
}

// BlendVectors combines two vectors with the given weights and
// renormalizes the result. Returns nil for mismatched lengths.
func BlendVectors(a, b []float32, wa, wb float64) []float32 {
	if len(a) != len(b) || len(a) == 0 {
		return nil
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32(wa*float64(a[i]) + wb*float64(b[i]))
	}
	return NormalizeL2(out)
}
