// Package spread turns a fire-risk score into a severity label and a
// proportional spread-area figure. The multiplier is a heuristic scale,
// not a physical spread model.
package spread

import (
	"math"

	"github.com/forest-guardian/firerisk/internal/apperr"
)

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

type Params struct {
	Multiplier        float64
	SevereThreshold   float64
	ModerateThreshold float64
}

func DefaultParams() Params {
	return Params{Multiplier: 1000, SevereThreshold: 0.7, ModerateThreshold: 0.4}
}

type Result struct {
	FireRiskScore  float64  `json:"fire_risk_score"`
	Severity       Severity `json:"severity"`
	SpreadEstimate float64  `json:"spread_estimate"`
}

// Classify uses strict lower bounds: a score equal to a threshold stays in
// the band below it.
func (p Params) Classify(score float64) Severity {
	switch {
	case score > p.SevereThreshold:
		return SeveritySevere
	case score > p.ModerateThreshold:
		return SeverityModerate
	default:
		return SeverityMild
	}
}

func Estimate(score float64, params Params) (Result, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Result{}, apperr.Input("spread", "fire risk score must be a finite number, got %v", score)
	}
	return Result{
		FireRiskScore:  score,
		Severity:       params.Classify(score),
		SpreadEstimate: math.Round(score*params.Multiplier*100) / 100,
	}, nil
}
