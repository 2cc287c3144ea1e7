// Package stats holds the descriptive statistics shared by the cleaning,
// segmentation and risk stages.
package stats

import (
	"math"
	"slices"

	"github.com/forest-guardian/firerisk/internal/metadata"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentile interpolates linearly between the closest ranks of an
// ascending slice: position p/100*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Finite returns the non-NaN, non-Inf values of a band.
func Finite(values []float64) []float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	return valid
}

// Median of the finite values, and whether any exist.
func Median(values []float64) (float64, bool) {
	valid := Finite(values)
	if len(valid) == 0 {
		return 0, false
	}
	slices.Sort(valid)
	return Percentile(valid, 50), true
}

// Describe computes the statistic set over finite values. The standard
// deviation is the population form.
func Describe(valid []float64) metadata.Stats {
	if len(valid) == 0 {
		return metadata.Stats{}
	}
	sorted := slices.Clone(valid)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)
	return metadata.Stats{
		Min:    ptr(floats.Min(sorted)),
		Max:    ptr(floats.Max(sorted)),
		Mean:   ptr(mean),
		Std:    ptr(std),
		Median: ptr(Percentile(sorted, 50)),
		Q1:     ptr(q1),
		Q3:     ptr(q3),
		IQR:    ptr(q3 - q1),
	}
}

func ptr(v float64) *float64 {
	return &v
}

// Impute replaces missing cells with the band median (0 when no cell is
// valid) without clipping, returning the value used.
func Impute(values []float64) ([]float64, float64) {
	median, _ := Median(values)
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = median
		}
		out[i] = v
	}
	return out, median
}
