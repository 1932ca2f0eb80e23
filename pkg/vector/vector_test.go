package vector_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/vector"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestL2NormalizeUnitLength(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"simple", []float32{3, 4}},
		{"negative components", []float32{-1, 2, -3, 4}},
		{"tiny magnitudes", []float32{1e-4, 2e-4}},
		{"large magnitudes", []float32{1e6, -1e6, 5e5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := vector.L2Normalize(tt.in)
			assert.InDelta(t, 1.0, norm(out), 1e-6)
		})
	}
}

func TestL2NormalizeZeroVectorUnchanged(t *testing.T) {
	in := []float32{0, 0, 0}
	out := vector.L2Normalize(in)
	assert.Equal(t, in, out)
}

func TestNormalizeClampsComponents(t *testing.T) {
	out := vector.Normalize([]float32{10, -20, 5})
	for _, x := range out {
		assert.GreaterOrEqual(t, x, float32(-1))
		assert.LessOrEqual(t, x, float32(1))
	}
	assert.InDelta(t, 1.0, norm(out), 1e-6)
}

func TestCosineSimilarityProperties(t *testing.T) {
	v := []float32{0.3, -0.7, 0.2, 0.5}

	self, err := vector.CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-9)

	opposite := make([]float32, len(v))
	for i, x := range v {
		opposite[i] = -x
	}
	opp, err := vector.CosineSimilarity(v, opposite)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opp, 1e-9)

	w := []float32{0.9, 0.1, -0.4, 0.2}
	ab, err := vector.CosineSimilarity(v, w)
	require.NoError(t, err)
	ba, err := vector.CosineSimilarity(w, v)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	empty, err := vector.CosineSimilarity(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, empty)

	zero, err := vector.CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := vector.CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)

	var mismatch *types.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Want)
	assert.Equal(t, 3, mismatch.Got)
}

func TestMean(t *testing.T) {
	mean, err := vector.Mean([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, mean)

	_, err = vector.Mean([][]float32{{1, 0}, {0, 1, 2}})
	require.Error(t, err)

	empty, err := vector.Mean(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
