// Package segmentation partitions a region's reference raster into
// unsupervised clusters and persists the label mask.
package segmentation

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/internal/region"
	"github.com/forest-guardian/firerisk/internal/stats"
	"github.com/forest-guardian/firerisk/output"
	"github.com/schollz/progressbar/v3"
)

const convergenceTol = 1e-4

type Engine struct {
	Store   artifact.Store
	Opener  raster.Opener
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Progress receives the prediction progress bar; nil hides it.
	Progress io.Writer

	Clusters       int
	MaxBands       int
	SampleSize     int
	BatchSize      int
	MaxIter        int
	InitRuns       int
	Seed           int64
	PreviewEnabled bool
	PreviewMaxSize int
}

type Result struct {
	OK            bool           `json:"ok"`
	Region        string         `json:"region"`
	ReferenceFile string         `json:"reference_file"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	BandsUsed     int            `json:"bands_used"`
	NClusters     int            `json:"n_clusters"`
	SampleSize    int            `json:"sample_size"`
	MaxIter       int            `json:"max_iter"`
	Attempts      int            `json:"attempts"`
	Inertia       float64        `json:"inertia"`
	Centers       [][]float64    `json:"centers"`
	Distribution  map[string]int `json:"distribution"`
	MaskPath      string         `json:"mask_path"`
	MaskPreview   string         `json:"mask_preview,omitempty"`
}

func (e *Engine) Run(ctx context.Context, regionInput string) (result *Result, err error) {
	const op = "segment"
	defer apperr.Recover(op, &err)

	slug := region.Slug(regionInput)
	if slug == "" {
		return nil, apperr.Input(op, "region identifier %q is empty", regionInput)
	}

	records, err := metadata.LoadRecords(ctx, e.Store, slug, e.Logger)
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

	features, width, height, err := e.readFeatures(ctx, ref.File)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("segmenting reference raster", "region", slug, "stage", op,
		"file", ref.File, "width", width, "height", height, "bands", len(features))

	pixels := width * height
	rng := rand.New(rand.NewSource(e.Seed))
	indices := sampleIndices(pixels, e.SampleSize, rng)
	sample := make([][]float64, len(indices))
	for i, idx := range indices {
		sample[i] = pixelVector(features, idx)
	}

	model, err := KMeans{
		K:        e.Clusters,
		MaxIter:  e.MaxIter,
		InitRuns: e.InitRuns,
		Tol:      convergenceTol,
		Seed:     e.Seed,
	}.Fit(sample)
	if err != nil {
		return nil, apperr.Data(op, err, "fit clusters")
	}

	mask, err := e.predict(ctx, slug, model, features, width, height)
	if err != nil {
		return nil, err
	}
	e.Metrics.PixelsSegmented.Add(float64(pixels))

	payload, err := artifact.EncodeMask(mask)
	if err != nil {
		return nil, apperr.Internal(op, err, "encode mask")
	}
	maskKey := artifact.RegionKey(slug, artifact.KindMask)
	if err := e.Store.Put(ctx, maskKey, payload); err != nil {
		return nil, apperr.Internal(op, err, "save mask")
	}

	result = &Result{
		OK:            true,
		Region:        slug,
		ReferenceFile: ref.File,
		Width:         width,
		Height:        height,
		BandsUsed:     len(features),
		NClusters:     len(model.Centers),
		SampleSize:    len(sample),
		MaxIter:       max(1, e.MaxIter),
		Attempts:      max(1, e.InitRuns),
		Inertia:       model.Inertia,
		Centers:       model.Centers,
		Distribution:  distribution(mask),
		MaskPath:      e.Store.Location(maskKey),
	}

	if e.PreviewEnabled {
		result.MaskPreview = e.saveMaskPreview(ctx, slug, mask)
	}

	e.Logger.Info("segmentation finished", "region", slug, "stage", op,
		"clusters", result.NClusters, "inertia", result.Inertia, "distribution", result.Distribution)
	return result, nil
}

// readFeatures loads up to MaxBands bands of the reference raster with
// missing cells imputed by the band median.
func (e *Engine) readFeatures(ctx context.Context, path string) ([][]float64, int, int, error) {
	const op = "segment"
	ds, err := e.Opener.Open(path)
	if err != nil {
		return nil, 0, 0, apperr.Data(op, err, "unreadable reference raster")
	}
	defer ds.Close()

	count := min(max(1, e.MaxBands), ds.BandCount())
	if count == 0 {
		return nil, 0, 0, apperr.Data(op, nil, "reference raster %s has no bands", path)
	}
	width, height := ds.Width(), ds.Height()
	if width*height == 0 {
		return nil, 0, 0, apperr.Data(op, nil, "reference raster %s has no pixels", path)
	}

	features := make([][]float64, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		band, err := ds.ReadBand(i)
		if err != nil {
			return nil, 0, 0, apperr.Data(op, err, "read band %d", i)
		}
		imputed, _ := stats.Impute(band.Values)
		features = append(features, imputed)
	}
	return features, width, height, nil
}

func (e *Engine) predict(ctx context.Context, slug string, model *Model, features [][]float64, width, height int) (*artifact.Mask, error) {
	mask := artifact.NewMask(height, width)
	pixels := len(mask.Labels)
	batch := max(1, e.BatchSize)

	bar := progressbar.NewOptions64(int64(pixels),
		progressbar.OptionSetWriter(progressWriter(e.Progress)),
		progressbar.OptionSetVisibility(e.Progress != nil),
		progressbar.OptionSetDescription("Segmenting "+slug),
	)
	defer bar.Finish()

	point := make([]float64, len(features))
	for start := 0; start < pixels; start += batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batch, pixels)
		for idx := start; idx < end; idx++ {
			for b := range features {
				point[b] = features[b][idx]
			}
			mask.Labels[idx] = int32(model.Predict(point))
		}
		bar.Add(end - start)
	}
	return mask, nil
}

func (e *Engine) saveMaskPreview(ctx context.Context, slug string, mask *artifact.Mask) string {
	payload, err := output.CreateMaskImage(mask, e.PreviewMaxSize)
	if err == nil {
		key := artifact.RegionKey(slug, artifact.KindMaskPreview)
		if err = e.Store.Put(ctx, key, payload); err == nil {
			return e.Store.Location(key)
		}
	}
	e.Logger.Warn("mask preview failed", "region", slug, "error", err)
	return ""
}

func pixelVector(features [][]float64, idx int) []float64 {
	point := make([]float64, len(features))
	for b := range features {
		point[b] = features[b][idx]
	}
	return point
}

func distribution(mask *artifact.Mask) map[string]int {
	counts := make(map[string]int)
	for _, label := range mask.Labels {
		counts[strconv.Itoa(int(label))]++
	}
	return counts
}

func progressWriter(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
