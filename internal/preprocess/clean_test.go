package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to float64) []float64 {
	var values []float64
	for v := from; v <= to; v++ {
		values = append(values, v)
	}
	return values
}

func TestCleanBand_RoundTrip(t *testing.T) {
	input := seq(1, 10)
	cleaned := CleanBand(input)

	assert.Equal(t, input, cleaned.Values)
	assert.Zero(t, cleaned.Stats.PercentMissing)
	assert.Zero(t, cleaned.Stats.PercentClipped)
	assert.Equal(t, cleaned.Stats.RawStats, cleaned.Stats.CleanedStats)
}

func TestCleanBand_ImputesMedian(t *testing.T) {
	input := []float64{1, 2, math.NaN(), 4, 5}
	cleaned := CleanBand(input)

	assert.Equal(t, 3.0, cleaned.Values[2])
	assert.Equal(t, 3.0, cleaned.Stats.ImputeValue)
	assert.InDelta(t, 20.0, cleaned.Stats.PercentMissing, 1e-12)
	for _, v := range cleaned.Values {
		assert.False(t, math.IsNaN(v))
	}
}

func TestCleanBand_ClipBounds(t *testing.T) {
	input := append(seq(1, 9), 100)
	cleaned := CleanBand(input)
	s := cleaned.Stats

	require.NotNil(t, s.RawStats.Q1)
	q1, q3 := *s.RawStats.Q1, *s.RawStats.Q3
	assert.InDelta(t, 3.25, q1, 1e-12)
	assert.InDelta(t, 7.75, q3, 1e-12)
	assert.InDelta(t, q1-1.5*(q3-q1), s.ClipLower, 1e-12)
	assert.InDelta(t, q3+1.5*(q3-q1), s.ClipUpper, 1e-12)

	for _, v := range cleaned.Values {
		assert.GreaterOrEqual(t, v, s.ClipLower)
		assert.LessOrEqual(t, v, s.ClipUpper)
	}
	assert.InDelta(t, 14.5, cleaned.Values[9], 1e-12)
	assert.InDelta(t, 10.0, s.PercentClipped, 1e-12)
	assert.Equal(t, 100.0, *s.RawStats.Max)
	assert.InDelta(t, 14.5, *s.CleanedStats.Max, 1e-12)
}

func TestCleanBand_ConstantBandFallsBackToPercentiles(t *testing.T) {
	input := []float64{5, 5, 5, 5, 5, 5}
	cleaned := CleanBand(input)

	require.NotNil(t, cleaned.Stats.RawStats.IQR)
	assert.Zero(t, *cleaned.Stats.RawStats.IQR)
	assert.Equal(t, 5.0, cleaned.Stats.ClipLower)
	assert.Equal(t, 5.0, cleaned.Stats.ClipUpper)
	assert.Equal(t, input, cleaned.Values)
}

func TestCleanBand_SingleValidValue(t *testing.T) {
	nan := math.NaN()
	cleaned := CleanBand([]float64{nan, 8, nan})

	assert.Equal(t, 8.0, cleaned.Stats.ClipLower)
	assert.Equal(t, 8.0, cleaned.Stats.ClipUpper)
	assert.Equal(t, []float64{8, 8, 8}, cleaned.Values)
}

func TestCleanBand_AllMissing(t *testing.T) {
	nan := math.NaN()
	cleaned := CleanBand([]float64{nan, nan})

	assert.Nil(t, cleaned.Stats.RawStats.Median)
	assert.Zero(t, cleaned.Stats.ImputeValue)
	assert.Equal(t, []float64{0, 0}, cleaned.Values)
	assert.Equal(t, 100.0, cleaned.Stats.PercentMissing)
	require.NotNil(t, cleaned.Stats.CleanedStats.Mean)
	assert.Zero(t, *cleaned.Stats.CleanedStats.Mean)
}

func TestClipBounds_SkewedIQRFallback(t *testing.T) {
	// Q1 == Q3 but the tails differ, so the percentile fallback widens the bounds.
	sorted := []float64{0, 5, 5, 5, 5, 5, 5, 5, 5, 10}
	lower, upper := ClipBounds(sorted, 5)
	assert.InDelta(t, 0.45, lower, 1e-12)
	assert.InDelta(t, 9.55, upper, 1e-12)
}
