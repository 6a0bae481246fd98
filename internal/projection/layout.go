package projection

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// layout3D produces 3D positions for high-dimensional vectors: a PCA
// projection seeds the layout, then an iterative pass pulls each point
// toward its graph neighbors so local structure survives the reduction.
// Output is recentered and scaled to unit RMS radius.
func layout3D(vectors [][]float32, neighbors [][]int) [][3]float64 {
	n := len(vectors)
	dim := len(vectors[0])

	data := mat.NewDense(n, dim, nil)
	for i, v := range vectors {
		for j, x := range v {
			data.Set(i, j, float64(x))
		}
	}
	centerColumns(data)

	coords := pcaProject(data, 3)

	for iter := 0; iter < refineIters; iter++ {
		next := make([][3]float64, n)
		for i := range coords {
			next[i] = coords[i]
			if len(neighbors[i]) == 0 {
				continue
			}
			var mean [3]float64
			for _, nb := range neighbors[i] {
				for d := 0; d < 3; d++ {
					mean[d] += coords[nb][d]
				}
			}
			for d := 0; d < 3; d++ {
				mean[d] /= float64(len(neighbors[i]))
				next[i][d] += refineStep * (mean[d] - coords[i][d])
			}
		}
		coords = next
		normalizeSpread(coords)
	}
	return coords
}

func centerColumns(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
		}
		mean := sum / float64(r)
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)-mean)
		}
	}
}

// pcaProject projects centered rows onto the top principal components via
// thin SVD.
func pcaProject(data *mat.Dense, components int) [][3]float64 {
	var svd mat.SVD
	if !svd.Factorize(data, mat.SVDThin) {
		// Degenerate input: fall back to the first coordinates.
		return fallbackProject(data)
	}
	var v mat.Dense
	svd.VTo(&v)

	n, _ := data.Dims()
	_, vc := v.Dims()
	if vc < components {
		return fallbackProject(data)
	}

	out := make([][3]float64, n)
	for i := 0; i < n; i++ {
		row := data.RawRowView(i)
		for d := 0; d < components; d++ {
			var dot float64
			for j, x := range row {
				dot += x * v.At(j, d)
			}
			out[i][d] = dot
		}
	}
	normalizeSpread(out)
	return out
}

func fallbackProject(data *mat.Dense) [][3]float64 {
	n, c := data.Dims()
	out := make([][3]float64, n)
	for i := 0; i < n; i++ {
		for d := 0; d < 3 && d < c; d++ {
			out[i][d] = data.At(i, d)
		}
	}
	normalizeSpread(out)
	return out
}

// normalizeSpread recenters the cloud and scales it to unit RMS radius so
// refinement iterations cannot collapse or explode the layout.
func normalizeSpread(coords [][3]float64) {
	n := len(coords)
	if n == 0 {
		return
	}
	var center [3]float64
	for _, c := range coords {
		for d := 0; d < 3; d++ {
			center[d] += c[d]
		}
	}
	for d := 0; d < 3; d++ {
		center[d] /= float64(n)
	}

	var sq float64
	for i := range coords {
		for d := 0; d < 3; d++ {
			coords[i][d] -= center[d]
			sq += coords[i][d] * coords[i][d]
		}
	}
	rms := math.Sqrt(sq / float64(n))
	if rms < 1e-12 {
		return
	}
	for i := range coords {
		for d := 0; d < 3; d++ {
			coords[i][d] /= rms
		}
	}
}
