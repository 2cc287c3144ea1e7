// Package risk derives a region's fire-risk record from terrain slope and
// aspect, optionally aggregated over segmentation clusters.
package risk

import (
	"context"
	"errors"
	"image/color"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/internal/region"
	"github.com/forest-guardian/firerisk/output"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
)

const (
	MaskApplied       = "applied"
	MaskMissing       = "missing"
	MaskShapeMismatch = "shape_mismatch"
	MaskUnreadable    = "unreadable"
)

type Record struct {
	OK                  bool             `json:"ok"`
	Region              string           `json:"region"`
	ReferenceFile       string           `json:"reference_file"`
	HighRiskPercent     float64          `json:"high_risk_percent"`
	ModerateRiskPercent float64          `json:"moderate_risk_percent"`
	LowRiskPercent      float64          `json:"low_risk_percent"`
	HighRiskAreaKm2     float64          `json:"high_risk_area_km2"`
	ModerateRiskAreaKm2 float64          `json:"moderate_risk_area_km2"`
	LowRiskAreaKm2      float64          `json:"low_risk_area_km2"`
	OverallRiskLevel    Level            `json:"overall_risk_level"`
	Confidence          float64          `json:"confidence"`
	FireRiskScore       float64          `json:"fire_risk_score"`
	PixelAreaKm2        float64          `json:"pixel_area_km2"`
	TotalAreaKm2        float64          `json:"total_area_km2"`
	TotalPixels         int              `json:"total_pixels"`
	MaskApplied         bool             `json:"mask_applied"`
	MaskStatus          string           `json:"mask_status"`
	SegmentClasses      map[string]Level `json:"segment_classes,omitempty"`
	RiskMap             string           `json:"risk_map,omitempty"`
	ScoreMap            string           `json:"score_map,omitempty"`
	RiskGeoJSON         string           `json:"risk_geojson,omitempty"`
	Timestamp           string           `json:"timestamp"`
}

type Analyzer struct {
	Store  artifact.Store
	Opener raster.Opener
	Clock  clockwork.Clock
	Logger *slog.Logger
	Params Params

	// Rendered maps are skipped unless PreviewEnabled is set.
	PreviewEnabled bool
	PreviewMaxSize int
}

// Legend order follows levelIndex.
var riskLegend = []output.ClassLegend{
	{Name: string(LevelLow), Color: color.RGBA{R: 46, G: 160, B: 67, A: 255}},
	{Name: string(LevelModerate), Color: color.RGBA{R: 255, G: 165, A: 255}},
	{Name: string(LevelHigh), Color: color.RGBA{R: 220, G: 30, B: 30, A: 255}},
}

func levelIndex(level Level) int {
	switch level {
	case LevelHigh:
		return 2
	case LevelModerate:
		return 1
	default:
		return 0
	}
}

func (a *Analyzer) Run(ctx context.Context, regionInput string) (record *Record, err error) {
	const op = "risk"
	defer apperr.Recover(op, &err)

	slug := region.Slug(regionInput)
	if slug == "" {
		return nil, apperr.Input(op, "region identifier %q is empty", regionInput)
	}

	records, err := metadata.LoadRecords(ctx, a.Store, slug, a.Logger)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.NotAvailable(op, "no metadata found for region %s; run preprocessing first", slug)
	}
	ref, ok := metadata.SelectReference(records)
	if !ok {
		return nil, apperr.NotAvailable(op, "no metadata record of region %s names a raster file", slug)
	}

	grid, err := a.readTerrain(ctx, ref)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(grid.slope))
	var scoreSum float64
	for i := range scores {
		scores[i] = a.Params.Score(grid.slope[i], grid.aspect[i])
		scoreSum += scores[i]
	}

	record = &Record{
		OK:            true,
		Region:        slug,
		ReferenceFile: ref.File,
		TotalPixels:   len(scores),
	}
	if len(scores) > 0 {
		record.FireRiskScore = scoreSum / float64(len(scores))
	}

	mask, status := a.loadMask(ctx, slug, grid.width, grid.height)
	record.MaskStatus = status
	var levels []Level
	if mask != nil {
		record.MaskApplied = true
		levels, record.SegmentClasses = a.classifySegments(scores, mask)
	} else {
		levels = make([]Level, len(scores))
		for i, s := range scores {
			levels[i] = a.Params.Classify(s)
		}
	}

	counts := make(map[Level]int)
	for _, level := range levels {
		counts[level]++
	}

	record.PixelAreaKm2 = PixelAreaKm2(grid.resX, grid.resY, grid.meanLatitude)
	shares := Aggregate(counts, record.PixelAreaKm2)
	record.HighRiskPercent = shares.Percent[LevelHigh]
	record.ModerateRiskPercent = shares.Percent[LevelModerate]
	record.LowRiskPercent = shares.Percent[LevelLow]
	record.HighRiskAreaKm2 = shares.AreaKm2[LevelHigh]
	record.ModerateRiskAreaKm2 = shares.AreaKm2[LevelModerate]
	record.LowRiskAreaKm2 = shares.AreaKm2[LevelLow]
	record.TotalAreaKm2 = record.PixelAreaKm2 * float64(record.TotalPixels)
	record.OverallRiskLevel, record.Confidence = Overall(shares.Percent)
	record.Timestamp = a.Clock.Now().UTC().Format(time.RFC3339)

	if a.PreviewEnabled {
		a.saveMaps(ctx, record, grid, scores, levels)
	}

	if err := artifact.PutJSON(ctx, a.Store, artifact.RegionKey(slug, artifact.KindRisk), record); err != nil {
		return nil, apperr.Internal(op, err, "save risk record")
	}

	a.Logger.Info("risk analysis finished", "region", slug, "stage", op,
		"overall", record.OverallRiskLevel, "confidence", record.Confidence, "mask", record.MaskStatus)
	return record, nil
}

type terrain struct {
	width, height int
	slope, aspect []float64
	resX, resY    float64
	meanLatitude  float64
	bound         orb.Bound
}

func (a *Analyzer) readTerrain(ctx context.Context, ref metadata.Record) (*terrain, error) {
	const op = "risk"
	ds, err := a.Opener.Open(ref.File)
	if err != nil {
		return nil, apperr.Data(op, err, "unreadable reference raster")
	}
	defer ds.Close()

	needed := max(a.Params.SlopeBand, a.Params.AspectBand)
	if ds.BandCount() < needed {
		return nil, apperr.Data(op, nil, "reference raster %s has %d band(s), slope and aspect need %d", ref.File, ds.BandCount(), needed)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, apperr.Data(op, err, "reference raster %s is not georeferenced", ref.File)
	}
	bound := raster.Bounds(gt, ds.Width(), ds.Height())
	resX, resY := raster.Resolution(gt)

	t := &terrain{
		width:        ds.Width(),
		height:       ds.Height(),
		resX:         resX,
		resY:         resY,
		meanLatitude: (bound.Top() + bound.Bottom()) / 2,
		bound:        bound,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.slope, err = readImputed(ds, ref, a.Params.SlopeBand); err != nil {
		return nil, err
	}
	if t.aspect, err = readImputed(ds, ref, a.Params.AspectBand); err != nil {
		return nil, err
	}
	return t, nil
}

// readImputed fills missing cells with the band median recorded during
// preprocessing, or 0 when none was recorded.
func readImputed(ds raster.Dataset, ref metadata.Record, index int) ([]float64, error) {
	band, err := ds.ReadBand(index)
	if err != nil {
		return nil, apperr.Data("risk", err, "read band %d", index)
	}
	fill := 0.0
	if stats, ok := ref.Band(index); ok && stats.RawStats.Median != nil {
		fill = *stats.RawStats.Median
	}
	for i, v := range band.Values {
		if math.IsNaN(v) {
			band.Values[i] = fill
		}
	}
	return band.Values, nil
}

// loadMask returns the segmentation mask when it exists and matches the
// raster shape; otherwise nil and the reason.
func (a *Analyzer) loadMask(ctx context.Context, slug string, width, height int) (*artifact.Mask, string) {
	payload, err := a.Store.Get(ctx, artifact.RegionKey(slug, artifact.KindMask))
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, MaskMissing
	}
	if err != nil {
		a.Logger.Warn("mask unavailable, classifying per pixel", "region", slug, "error", err)
		return nil, MaskUnreadable
	}
	mask, err := artifact.DecodeMask(payload)
	if err != nil {
		a.Logger.Warn("mask unreadable, classifying per pixel", "region", slug, "error", err)
		return nil, MaskUnreadable
	}
	if mask.Width != width || mask.Height != height {
		a.Logger.Warn("mask shape mismatch, classifying per pixel", "region", slug,
			"mask", strconv.Itoa(mask.Height)+"x"+strconv.Itoa(mask.Width),
			"raster", strconv.Itoa(height)+"x"+strconv.Itoa(width))
		return nil, MaskShapeMismatch
	}
	return mask, MaskApplied
}

// classifySegments classifies each segment by its mean score and lets every
// pixel inherit its segment's level.
func (a *Analyzer) classifySegments(scores []float64, mask *artifact.Mask) ([]Level, map[string]Level) {
	sums := make(map[int32]float64)
	counts := make(map[int32]int)
	for i, label := range mask.Labels {
		sums[label] += scores[i]
		counts[label]++
	}

	segmentLevels := make(map[int32]Level, len(sums))
	named := make(map[string]Level, len(sums))
	for label, sum := range sums {
		level := a.Params.Classify(sum / float64(counts[label]))
		segmentLevels[label] = level
		named[strconv.Itoa(int(label))] = level
	}

	levels := make([]Level, len(scores))
	for i, label := range mask.Labels {
		levels[i] = segmentLevels[label]
	}
	return levels, named
}

// saveMaps renders the class map, score heatmap and footprint of a record.
// Failures are logged and leave the matching record field empty.
func (a *Analyzer) saveMaps(ctx context.Context, record *Record, grid *terrain, scores []float64, levels []Level) {
	classes := make([]int, len(levels))
	for i, level := range levels {
		classes[i] = levelIndex(level)
	}
	record.RiskMap = a.putBestEffort(ctx, record.Region, artifact.KindRiskMap, func() ([]byte, error) {
		return output.CreateClassMapImage(classes, grid.width, grid.height, riskLegend, a.PreviewMaxSize)
	})
	record.ScoreMap = a.putBestEffort(ctx, record.Region, artifact.KindScoreMap, func() ([]byte, error) {
		return output.CreateScoreHeatmapImage(scores, grid.width, grid.height, a.PreviewMaxSize)
	})
	record.RiskGeoJSON = a.putBestEffort(ctx, record.Region, artifact.KindRiskGeoJSON, func() ([]byte, error) {
		return output.CreateRiskGeoJson(grid.bound, map[string]any{
			"region":             record.Region,
			"overall_risk_level": string(record.OverallRiskLevel),
			"confidence":         record.Confidence,
			"fire_risk_score":    record.FireRiskScore,
			"high_risk_percent":  record.HighRiskPercent,
			"total_area_km2":     record.TotalAreaKm2,
		})
	})
}

func (a *Analyzer) putBestEffort(ctx context.Context, slug string, kind artifact.Kind, render func() ([]byte, error)) string {
	payload, err := render()
	if err == nil {
		key := artifact.RegionKey(slug, kind)
		if err = a.Store.Put(ctx, key, payload); err == nil {
			return a.Store.Location(key)
		}
	}
	a.Logger.Warn("risk map failed", "region", slug, "kind", kind, "error", err)
	return ""
}
