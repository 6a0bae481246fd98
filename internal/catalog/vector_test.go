package catalog

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"mismatched length", []float32{1, 2}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("expected unit length, got %v", norm)
	}
}

func TestNormalizeL2ZeroVector(t *testing.T) {
	v := NormalizeL2([]float32{0, 0, 0})
	for i, x := range v {
		if x != 0 {
			t.Errorf("zero vector should be unchanged, index %d = %v", i, x)
		}
	}
}

func TestMeanVector(t *testing.T) {
	mean := MeanVector([][]float32{
		{1, 0},
		{3, 2},
	})
	if mean[0] != 2 || mean[1] != 1 {
		t.Errorf("unexpected mean: %v", mean)
	}

	if MeanVector(nil) != nil {
		t.Error("expected nil mean for empty input")
	}
}

func TestBlendVectors(t *testing.T) {
	out := BlendVectors([]float32{1, 0}, []float32{0, 1}, 0.6, 0.4)
	if out == nil {
		t.Fatal("expected blended vector")
	}

	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Errorf("blend should be renormalized, norm = %v", math.Sqrt(norm))
	}
	if out[0] <= out[1] {
		t.Errorf("heavier weight should dominate: %v", out)
	}

	if BlendVectors([]float32{1}, []float32{1, 2}, 0.5, 0.5) != nil {
		t.Error("expected nil for mismatched lengths")
	}
}
