package vector

import (
	"math"

	"github.com/askdocs/askdocs/internal/types"
)

// L2Normalize divides every component by the Euclidean norm, producing a
// unit-length vector. A zero vector is returned unchanged.
func L2Normalize(v []float32) []float32 {
	norm := euclideanNorm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Normalize applies L2Normalize and clamps every component into [-1, 1],
// guarding against floating-point overshoot.
func Normalize(v []float32) []float32 {
	out := L2Normalize(v)
	for i, x := range out {
		if x > 1 {
			out[i] = 1
		} else if x < -1 {
			out[i] = -1
		}
	}
	return out
}

// CosineSimilarity returns the normalized dot product of a and b, in [-1, 1].
// Vectors of different lengths are a contract violation; empty or zero-norm
// inputs score 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &types.DimensionMismatchError{Want: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Mean computes the component-wise arithmetic mean of same-length vectors.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, &types.DimensionMismatchError{Want: dim, Got: len(v)}
		}
		for i, x := range v {
			sums[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	for i, s := range sums {
		out[i] = float32(s / float64(len(vectors)))
	}
	return out, nil
}

func euclideanNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
