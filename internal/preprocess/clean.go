package preprocess

import (
	"math"
	"slices"

	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/stats"
)

type CleanedBand struct {
	Values []float64
	Stats  metadata.BandStats
}

// ClipBounds returns the outlier bounds for a band's sorted valid values:
// Q1-1.5*IQR and Q3+1.5*IQR, falling back to the 1st/99th percentiles for a
// non-positive IQR and to the median itself below two values.
func ClipBounds(sorted []float64, median float64) (float64, float64) {
	if len(sorted) < 2 {
		return median, median
	}
	q1 := stats.Percentile(sorted, 25)
	q3 := stats.Percentile(sorted, 75)
	if iqr := q3 - q1; iqr > 0 {
		return q1 - 1.5*iqr, q3 + 1.5*iqr
	}
	return stats.Percentile(sorted, 1), stats.Percentile(sorted, 99)
}

// CleanBand imputes missing (NaN) cells with the median of the valid cells,
// clips outliers and records statistics before and after.
func CleanBand(values []float64) CleanedBand {
	valid := stats.Finite(values)
	sorted := slices.Clone(valid)
	slices.Sort(sorted)

	raw := stats.Describe(sorted)
	impute := 0.0
	if raw.Median != nil {
		impute = *raw.Median
	}
	lower, upper := ClipBounds(sorted, impute)

	cleaned := make([]float64, len(values))
	clipped := 0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = impute
		}
		if v < lower {
			v = lower
			clipped++
		} else if v > upper {
			v = upper
			clipped++
		}
		cleaned[i] = v
	}

	bandStats := metadata.BandStats{
		RawStats:     raw,
		CleanedStats: stats.Describe(cleaned),
		ClipLower:    lower,
		ClipUpper:    upper,
		ImputeValue:  impute,
	}
	if n := len(values); n > 0 {
		bandStats.PercentMissing = float64(n-len(valid)) / float64(n) * 100
		bandStats.PercentClipped = float64(clipped) / float64(n) * 100
	}
	return CleanedBand{Values: cleaned, Stats: bandStats}
}
