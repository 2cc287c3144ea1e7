package risk

import "math"

const (
	kmPerDegree = 111.32
	minCosine   = 1e-6
)

// PixelAreaKm2 approximates the ground area of one pixel with a degree size
// of resX x resY at the given latitude.
func PixelAreaKm2(resX, resY, meanLatitude float64) float64 {
	latKm := math.Abs(resY) * kmPerDegree
	lonKm := math.Abs(resX) * kmPerDegree * math.Max(math.Cos(meanLatitude*math.Pi/180), minCosine)
	return latKm * lonKm
}

type Shares struct {
	Percent map[Level]float64
	AreaKm2 map[Level]float64
}

// Aggregate turns per-level pixel counts into area-weighted shares. With a
// zero total area the shares fall back to pixel-count ratios.
func Aggregate(counts map[Level]int, pixelAreaKm2 float64) Shares {
	shares := Shares{Percent: make(map[Level]float64), AreaKm2: make(map[Level]float64)}
	totalPixels := 0
	for _, level := range Levels {
		totalPixels += counts[level]
		shares.AreaKm2[level] = float64(counts[level]) * pixelAreaKm2
	}
	totalArea := float64(totalPixels) * pixelAreaKm2

	for _, level := range Levels {
		switch {
		case totalArea > 0:
			shares.Percent[level] = shares.AreaKm2[level] / totalArea * 100
		case totalPixels > 0:
			shares.Percent[level] = float64(counts[level]) / float64(totalPixels) * 100
		default:
			shares.Percent[level] = 0
		}
	}
	return shares
}

// Overall picks the level with the largest share, breaking ties in the
// order HIGH, MODERATE, LOW, and derives the margin-based confidence.
// Without any share the result is LOW at the base confidence.
func Overall(percent map[Level]float64) (Level, float64) {
	total := 0.0
	for _, level := range Levels {
		total += percent[level]
	}
	if total <= 0 {
		return LevelLow, 0.6
	}

	top, second := Levels[0], Level("")
	for _, level := range Levels[1:] {
		if percent[level] > percent[top] {
			second, top = top, level
		} else if second == "" || percent[level] > percent[second] {
			second = level
		}
	}
	confidence := 0.6 + 0.4*(percent[top]-percent[second])/100
	return top, math.Min(0.99, math.Max(0.55, confidence))
}
