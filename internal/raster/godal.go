package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/firerisk/internal/utils"
)

// GodalOpener opens rasters through GDAL. godal.RegisterAll must have been
// called once before use.
type GodalOpener struct{}

func (GodalOpener) Open(path string) (Dataset, error) {
	var ds *godal.Dataset
	var err error
	utils.ExecuteWithMutex(func() {
		ds, err = godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
			if ec == godal.CE_Warning {
				return nil
			}
			return fmt.Errorf("gdal error %d: %s", code, msg)
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	return &godalDataset{path: path, ds: ds}, nil
}

type godalDataset struct {
	path string
	ds   *godal.Dataset
}

func (g *godalDataset) Path() string { return g.path }

func (g *godalDataset) Driver() string {
	var name string
	utils.ExecuteWithMutex(func() {
		name = g.ds.Driver().ShortName()
	})
	return name
}

func (g *godalDataset) Width() int { return g.ds.Structure().SizeX }

func (g *godalDataset) Height() int { return g.ds.Structure().SizeY }

func (g *godalDataset) BandCount() int { return g.ds.Structure().NBands }

func (g *godalDataset) DataType() string {
	return dataTypeName(g.ds.Structure().DataType)
}

func (g *godalDataset) GeoTransform() ([6]float64, error) {
	var gt [6]float64
	var err error
	utils.ExecuteWithMutex(func() {
		gt, err = g.ds.GeoTransform()
	})
	return gt, err
}

func (g *godalDataset) Projection() string {
	var wkt string
	utils.ExecuteWithMutex(func() {
		wkt = g.ds.Projection()
	})
	return wkt
}

func (g *godalDataset) Metadata() map[string]string {
	var tags map[string]string
	utils.ExecuteWithMutex(func() {
		tags = g.ds.Metadatas()
	})
	return tags
}

func (g *godalDataset) ReadBand(index int) (*Band, error) {
	bands := g.ds.Bands()
	if index < 1 || index > len(bands) {
		return nil, fmt.Errorf("band %d out of range (raster has %d bands)", index, len(bands))
	}

	width, height := g.Width(), g.Height()
	band := &Band{Index: index, Width: width, Height: height, Values: make([]float64, width*height)}

	var err error
	utils.ExecuteWithMutex(func() {
		if nodata, ok := bands[index-1].NoData(); ok {
			band.NoData = &nodata
		}
		err = bands[index-1].Read(0, 0, band.Values, width, height)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read band %d of %s: %w", index, g.path, err)
	}

	maskMissing(band.Values, band.NoData)
	return band, nil
}

func (g *godalDataset) Close() error {
	var err error
	utils.ExecuteWithMutex(func() {
		err = g.ds.Close()
	})
	return err
}

func dataTypeName(dt godal.DataType) string {
	switch dt {
	case godal.Byte:
		return "uint8"
	case godal.UInt16:
		return "uint16"
	case godal.Int16:
		return "int16"
	case godal.UInt32:
		return "uint32"
	case godal.Int32:
		return "int32"
	case godal.Float32:
		return "float32"
	case godal.Float64:
		return "float64"
	default:
		return "unknown"
	}
}
