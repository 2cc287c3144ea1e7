package preprocess

import (
	"context"
	"log/slog"
	"math"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/output"
)

// Cleaner extracts a metadata record, with per-band cleaning statistics, from
// one raster file.
type Cleaner struct {
	Opener         raster.Opener
	PreviewEnabled bool
	PreviewMaxSize int
	Logger         *slog.Logger
}

// Extract opens path, cleans every band and returns the record plus an
// optional PNG preview. A failed preview is logged and omitted.
func (c *Cleaner) Extract(ctx context.Context, path string) (record *metadata.Record, preview []byte, err error) {
	const op = "extract"
	defer apperr.Recover(op, &err)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ds, err := c.Opener.Open(path)
	if err != nil {
		return nil, nil, apperr.Data(op, err, "unreadable raster")
	}
	defer ds.Close()

	if ds.BandCount() == 0 {
		return nil, nil, apperr.Data(op, nil, "raster %s has no bands", path)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		c.Logger.Warn("raster has no geotransform, using identity", "file", path, "error", err)
		gt = [6]float64{0, 1, 0, 0, 0, 1}
	}
	bound := raster.Bounds(gt, ds.Width(), ds.Height())
	resX, resY := raster.Resolution(gt)

	record = &metadata.Record{
		File:      path,
		Driver:    ds.Driver(),
		DataType:  ds.DataType(),
		Width:     ds.Width(),
		Height:    ds.Height(),
		Count:     ds.BandCount(),
		CRS:       ds.Projection(),
		Transform: gt,
		Bounds: metadata.Bounds{
			Left:   bound.Left(),
			Bottom: bound.Bottom(),
			Right:  bound.Right(),
			Top:    bound.Top(),
		},
		Resolution: [2]float64{resX, resY},
		Tags:       ds.Metadata(),
	}

	var previewBands [][]float64
	for i := 1; i <= ds.BandCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		band, err := ds.ReadBand(i)
		if err != nil {
			return nil, nil, apperr.Data(op, err, "read band %d", i)
		}
		if i == 1 && band.NoData != nil && !math.IsNaN(*band.NoData) {
			nodata := *band.NoData
			record.NoData = &nodata
		}

		cleaned := CleanBand(band.Values)
		cleaned.Stats.Band = i
		record.Bands = append(record.Bands, cleaned.Stats)

		if c.PreviewEnabled && len(previewBands) < 3 {
			previewBands = append(previewBands, cleaned.Values)
		}
	}

	if c.PreviewEnabled {
		preview, err = output.CreatePreviewImage(previewBands, record.Width, record.Height, c.PreviewMaxSize)
		if err != nil {
			c.Logger.Warn("preview generation failed", "file", path, "error", err)
			preview = nil
		}
	}

	return record, preview, nil
}
