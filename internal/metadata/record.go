// Package metadata defines the per-raster record written by preprocessing and
// read back by the segmentation and risk stages.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forest-guardian/firerisk/internal/artifact"
)

// Stats is a descriptive statistic set. Fields are nil when the band has
// no valid cells.
type Stats struct {
	Min    *float64 `json:"min" csv:"min"`
	Max    *float64 `json:"max" csv:"max"`
	Mean   *float64 `json:"mean" csv:"mean"`
	Std    *float64 `json:"std" csv:"std"`
	Median *float64 `json:"median" csv:"median"`
	Q1     *float64 `json:"q1" csv:"q1"`
	Q3     *float64 `json:"q3" csv:"q3"`
	IQR    *float64 `json:"iqr" csv:"iqr"`
}

type BandStats struct {
	Band           int     `json:"band"`
	RawStats       Stats   `json:"raw_stats"`
	CleanedStats   Stats   `json:"cleaned_stats"`
	PercentMissing float64 `json:"percent_missing"`
	PercentClipped float64 `json:"percent_clipped"`
	ClipLower      float64 `json:"clip_lower"`
	ClipUpper      float64 `json:"clip_upper"`
	ImputeValue    float64 `json:"impute_value"`
}

type Bounds struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

type Record struct {
	File       string            `json:"file"`
	Driver     string            `json:"driver"`
	DataType   string            `json:"dtype"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Count      int               `json:"count"`
	CRS        string            `json:"crs,omitempty"`
	Transform  [6]float64        `json:"transform"`
	Bounds     Bounds            `json:"bounds"`
	Resolution [2]float64        `json:"res"`
	NoData     *float64          `json:"nodata"`
	Tags       map[string]string `json:"tags,omitempty"`
	Bands      []BandStats       `json:"bands"`
	PreviewPNG string            `json:"preview_png,omitempty"`
}

func (r Record) Pixels() int {
	return r.Width * r.Height
}

// Band returns the statistics of a 1-based band index.
func (r Record) Band(index int) (BandStats, bool) {
	for _, b := range r.Bands {
		if b.Band == index {
			return b, true
		}
	}
	return BandStats{}, false
}

// SelectReference picks the raster that drives segmentation and risk
// analysis: the record with the largest pixel area among those naming a
// file. Ties keep the earliest record.
func SelectReference(records []Record) (Record, bool) {
	var best Record
	found := false
	for _, r := range records {
		if r.File == "" {
			continue
		}
		if !found || r.Pixels() > best.Pixels() {
			best = r
			found = true
		}
	}
	return best, found
}

// LoadRecords reads every metadata record stored for a region, in name
// order. Unreadable records are logged and skipped.
func LoadRecords(ctx context.Context, store artifact.Store, region string, logger *slog.Logger) ([]Record, error) {
	keys, err := store.List(ctx, region, artifact.KindMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		record, err := artifact.GetJSON[Record](ctx, store, key)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Warn("skipping unreadable metadata", "region", region, "artifact", key.Name, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
