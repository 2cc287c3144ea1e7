// Package raster abstracts georeferenced multi-band rasters so the pipeline
// stages can run against GDAL-backed files or in-memory fixtures.
package raster

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

// Dataset is an open multi-band raster. Band indexes are 1-based.
type Dataset interface {
	Path() string
	Driver() string
	Width() int
	Height() int
	BandCount() int
	DataType() string
	// GeoTransform returns the affine transform in GDAL order:
	// origin x, pixel width, row rotation, origin y, column rotation, pixel height.
	GeoTransform() ([6]float64, error)
	Projection() string
	Metadata() map[string]string
	ReadBand(index int) (*Band, error)
	Close() error
}

type Opener interface {
	Open(path string) (Dataset, error)
}

// Band holds one channel in row-major order. Cells equal to the band's
// nodata value, and non-finite cells, are NaN.
type Band struct {
	Index  int
	Width  int
	Height int
	Values []float64
	NoData *float64
}

func (b *Band) At(x, y int) float64 {
	return b.Values[y*b.Width+x]
}

func maskMissing(values []float64, nodata *float64) {
	for i, v := range values {
		if math.IsInf(v, 0) || (nodata != nil && (v == *nodata || (math.IsNaN(*nodata) && math.IsNaN(v)))) {
			values[i] = math.NaN()
		}
	}
}

func IsRasterFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// Bounds returns the geographic extent covered by a width x height grid.
func Bounds(gt [6]float64, width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	corners := [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}

	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range corners {
		x := gt[0] + gt[1]*c[0] + gt[2]*c[1]
		y := gt[3] + gt[4]*c[0] + gt[5]*c[1]
		bound = bound.Extend(orb.Point{x, y})
	}
	return bound
}

// Resolution returns the absolute pixel size along x and y.
func Resolution(gt [6]float64) (float64, float64) {
	return math.Hypot(gt[1], gt[4]), math.Hypot(gt[2], gt[5])
}
