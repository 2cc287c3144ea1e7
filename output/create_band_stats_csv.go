package output

import (
	"strconv"

	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/gocarina/gocsv"
)

type BandStatsRow struct {
	File           string `csv:"file"`
	Band           int    `csv:"band"`
	PercentMissing string `csv:"percent_missing"`
	PercentClipped string `csv:"percent_clipped"`
	ClipLower      string `csv:"clip_lower"`
	ClipUpper      string `csv:"clip_upper"`
	ImputeValue    string `csv:"impute_value"`
	RawMin         string `csv:"raw_min"`
	RawMax         string `csv:"raw_max"`
	RawMean        string `csv:"raw_mean"`
	RawStd         string `csv:"raw_std"`
	RawMedian      string `csv:"raw_median"`
	CleanMin       string `csv:"clean_min"`
	CleanMax       string `csv:"clean_max"`
	CleanMean      string `csv:"clean_mean"`
	CleanStd       string `csv:"clean_std"`
	CleanMedian    string `csv:"clean_median"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatStat leaves undefined statistics empty.
func formatStat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// CreateBandStatsCsv flattens the per-band statistics of every record into
// one CSV row per file and band.
func CreateBandStatsCsv(records []metadata.Record) ([]byte, error) {
	rows := []BandStatsRow{}
	for _, r := range records {
		for _, b := range r.Bands {
			rows = append(rows, BandStatsRow{
				File:           r.File,
				Band:           b.Band,
				PercentMissing: formatFloat(b.PercentMissing),
				PercentClipped: formatFloat(b.PercentClipped),
				ClipLower:      formatFloat(b.ClipLower),
				ClipUpper:      formatFloat(b.ClipUpper),
				ImputeValue:    formatFloat(b.ImputeValue),
				RawMin:         formatStat(b.RawStats.Min),
				RawMax:         formatStat(b.RawStats.Max),
				RawMean:        formatStat(b.RawStats.Mean),
				RawStd:         formatStat(b.RawStats.Std),
				RawMedian:      formatStat(b.RawStats.Median),
				CleanMin:       formatStat(b.CleanedStats.Min),
				CleanMax:       formatStat(b.CleanedStats.Max),
				CleanMean:      formatStat(b.CleanedStats.Mean),
				CleanStd:       formatStat(b.CleanedStats.Std),
				CleanMedian:    formatStat(b.CleanedStats.Median),
			})
		}
	}
	return gocsv.MarshalBytes(&rows)
}
