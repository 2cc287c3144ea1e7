package segmentation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobs() [][]float64 {
	var points [][]float64
	for i := range 30 {
		jitter := float64(i%5) * 0.1
		points = append(points,
			[]float64{50 + jitter, 50},
			[]float64{0 + jitter, 0},
			[]float64{100 + jitter, 100},
		)
	}
	return points
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	model, err := KMeans{K: 3, MaxIter: 100, InitRuns: 3, Tol: 1e-6, Seed: 42}.Fit(blobs())
	require.NoError(t, err)
	require.Len(t, model.Centers, 3)

	// centers come back as float32
	assert.InDelta(t, 0.2, model.Centers[0][0], 1e-4)
	assert.InDelta(t, 50.2, model.Centers[1][0], 1e-4)
	assert.InDelta(t, 100.2, model.Centers[2][0], 1e-4)

	assert.Equal(t, 0, model.Predict([]float64{-3, 1}))
	assert.Equal(t, 1, model.Predict([]float64{48, 52}))
	assert.Equal(t, 2, model.Predict([]float64{120, 90}))
}

func TestKMeans_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([][]float64, 500)
	for i := range points {
		points[i] = []float64{rng.Float64() * 10, rng.Float64() * 10}
	}

	km := KMeans{K: 4, MaxIter: 50, InitRuns: 2, Tol: 1e-4, Seed: 42}
	a, err := km.Fit(points)
	require.NoError(t, err)
	b, err := km.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, a.Centers, b.Centers)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestKMeans_ClampsKToPoints(t *testing.T) {
	model, err := KMeans{K: 5, MaxIter: 10, Seed: 1}.Fit([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Len(t, model.Centers, 2)
	assert.InDelta(t, 0, model.Inertia, 1e-9)
}

func TestKMeans_IdenticalPointsTerminate(t *testing.T) {
	points := [][]float64{{3, 3}, {3, 3}, {3, 3}, {3, 3}}
	model, err := KMeans{K: 3, MaxIter: 100, Seed: 42}.Fit(points)
	require.NoError(t, err)
	assert.Len(t, model.Centers, 3)
	assert.InDelta(t, 0, model.Inertia, 1e-9)
}

func TestKMeans_Errors(t *testing.T) {
	_, err := KMeans{K: 3}.Fit(nil)
	assert.Error(t, err)
	_, err = KMeans{K: 0}.Fit([][]float64{{1}})
	assert.Error(t, err)
}

func TestSampleIndices(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	idx := sampleIndices(1000, 100, rng)
	require.Len(t, idx, 100)
	seen := map[int]bool{}
	for i, v := range idx {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 1000)
		assert.False(t, seen[v], "duplicate index %d", v)
		seen[v] = true
		if i > 0 {
			assert.Greater(t, v, idx[i-1])
		}
	}

	again := sampleIndices(1000, 100, rand.New(rand.NewSource(42)))
	assert.Equal(t, idx, again)

	assert.Equal(t, []int{0, 1, 2}, sampleIndices(3, 10, rng))
}
