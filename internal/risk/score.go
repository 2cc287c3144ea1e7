package risk

import "math"

type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
)

// Levels in tie-break order for the overall risk level.
var Levels = []Level{LevelHigh, LevelModerate, LevelLow}

// Params configures the composite score. Band indexes are 1-based.
type Params struct {
	SlopeBand         int
	AspectBand        int
	SlopeWeight       float64
	AspectWeight      float64
	SlopeMaxDegrees   float64
	HighThreshold     float64
	ModerateThreshold float64
}

func DefaultParams() Params {
	return Params{
		SlopeBand:         1,
		AspectBand:        2,
		SlopeWeight:       0.65,
		AspectWeight:      0.35,
		SlopeMaxDegrees:   45,
		HighThreshold:     0.66,
		ModerateThreshold: 0.33,
	}
}

// Southness is 0 for a north-facing slope and 1 for a south-facing one.
func Southness(aspectDegrees float64) float64 {
	return 0.5 * (1 - math.Cos(aspectDegrees*math.Pi/180))
}

func (p Params) NormalizedSlope(slopeDegrees float64) float64 {
	if p.SlopeMaxDegrees <= 0 {
		return 0
	}
	return math.Min(math.Max(slopeDegrees, 0), p.SlopeMaxDegrees) / p.SlopeMaxDegrees
}

func (p Params) Score(slopeDegrees, aspectDegrees float64) float64 {
	return p.SlopeWeight*p.NormalizedSlope(slopeDegrees) + p.AspectWeight*Southness(aspectDegrees)
}

// Classify applies closed lower bounds: score >= high is HIGH, score >=
// moderate is MODERATE.
func (p Params) Classify(score float64) Level {
	switch {
	case score >= p.HighThreshold:
		return LevelHigh
	case score >= p.ModerateThreshold:
		return LevelModerate
	default:
		return LevelLow
	}
}
