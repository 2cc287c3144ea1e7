package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ClosedLowerBounds(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, LevelHigh, p.Classify(0.66))
	assert.Equal(t, LevelHigh, p.Classify(1))
	assert.Equal(t, LevelModerate, p.Classify(0.6599999))
	assert.Equal(t, LevelModerate, p.Classify(0.33))
	assert.Equal(t, LevelLow, p.Classify(0.329999))
	assert.Equal(t, LevelLow, p.Classify(0))
}

func TestScore(t *testing.T) {
	p := DefaultParams()
	assert.InDelta(t, 0.65*(30.0/45)+0.35, p.Score(30, 180), 1e-12)
	assert.InDelta(t, 0.7833333, p.Score(30, 180), 1e-6)
	assert.InDelta(t, 0.0, p.Score(0, 0), 1e-12)
	assert.InDelta(t, 1.0, p.Score(60, 180), 1e-12, "slope clamps at 45 degrees")
	assert.InDelta(t, 0.65, p.Score(-5+50, 360), 1e-12)
	assert.InDelta(t, 0.0, p.Score(-10, 0), 1e-12)
}

func TestSouthness(t *testing.T) {
	assert.InDelta(t, 0, Southness(0), 1e-12)
	assert.InDelta(t, 0.5, Southness(90), 1e-12)
	assert.InDelta(t, 1, Southness(180), 1e-12)
	assert.InDelta(t, 0.5, Southness(270), 1e-12)
}

func TestPixelAreaKm2(t *testing.T) {
	want := (0.01 * 111.32) * (0.01 * 111.32 * math.Cos(12.3*math.Pi/180))
	assert.InDelta(t, want, PixelAreaKm2(0.01, 0.01, 12.3), 1e-3)
	assert.InDelta(t, want, PixelAreaKm2(0.01, -0.01, -12.3), 1e-12)
	assert.InDelta(t, 1.2108, PixelAreaKm2(0.01, 0.01, 12.3), 1e-3)

	assert.Greater(t, PixelAreaKm2(0.01, 0.01, 90), 0.0, "cosine is floored near the poles")
}

func TestAggregate(t *testing.T) {
	shares := Aggregate(map[Level]int{LevelHigh: 3, LevelLow: 1}, 2)
	assert.InDelta(t, 75.0, shares.Percent[LevelHigh], 1e-12)
	assert.InDelta(t, 0.0, shares.Percent[LevelModerate], 1e-12)
	assert.InDelta(t, 25.0, shares.Percent[LevelLow], 1e-12)
	assert.InDelta(t, 6.0, shares.AreaKm2[LevelHigh], 1e-12)

	// degenerate resolution falls back to pixel ratios
	shares = Aggregate(map[Level]int{LevelModerate: 1, LevelLow: 1}, 0)
	assert.InDelta(t, 50.0, shares.Percent[LevelModerate], 1e-12)

	shares = Aggregate(map[Level]int{}, 1)
	assert.Zero(t, shares.Percent[LevelHigh])
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name       string
		percent    map[Level]float64
		level      Level
		confidence float64
	}{
		{"clear winner", map[Level]float64{LevelHigh: 100}, LevelHigh, 0.99},
		{"margin", map[Level]float64{LevelHigh: 20, LevelModerate: 30, LevelLow: 50}, LevelLow, 0.68},
		{"tie prefers higher risk", map[Level]float64{LevelHigh: 50, LevelLow: 50}, LevelHigh, 0.6},
		{"moderate over low on tie", map[Level]float64{LevelModerate: 40, LevelLow: 40, LevelHigh: 20}, LevelModerate, 0.6},
		{"empty", map[Level]float64{}, LevelLow, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, confidence := Overall(tt.percent)
			assert.Equal(t, tt.level, level)
			assert.InDelta(t, tt.confidence, confidence, 1e-12)
		})
	}
}
