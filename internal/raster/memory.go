package raster

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-memory Dataset. Bands are row-major and must each hold
// Width*Height values.
type Memory struct {
	Name       string
	Cols, Rows int
	Transform  [6]float64
	WKT        string
	Tags       map[string]string
	Type       string
	NoData     *float64
	Bands      [][]float64
}

func (m *Memory) Path() string { return m.Name }

func (m *Memory) Driver() string { return "MEM" }

func (m *Memory) Width() int { return m.Cols }

func (m *Memory) Height() int { return m.Rows }

func (m *Memory) BandCount() int { return len(m.Bands) }

func (m *Memory) DataType() string {
	if m.Type == "" {
		return "float64"
	}
	return m.Type
}

func (m *Memory) GeoTransform() ([6]float64, error) {
	if m.Transform == ([6]float64{}) {
		return [6]float64{}, fmt.Errorf("raster %s has no geotransform", m.Name)
	}
	return m.Transform, nil
}

func (m *Memory) Projection() string { return m.WKT }

func (m *Memory) Metadata() map[string]string { return maps.Clone(m.Tags) }

func (m *Memory) ReadBand(index int) (*Band, error) {
	if index < 1 || index > len(m.Bands) {
		return nil, fmt.Errorf("band %d out of range (raster has %d bands)", index, len(m.Bands))
	}
	src := m.Bands[index-1]
	if len(src) != m.Cols*m.Rows {
		return nil, fmt.Errorf("band %d holds %d values, want %d", index, len(src), m.Cols*m.Rows)
	}
	band := &Band{Index: index, Width: m.Cols, Height: m.Rows, Values: slices.Clone(src), NoData: m.NoData}
	maskMissing(band.Values, band.NoData)
	return band, nil
}

func (m *Memory) Close() error { return nil }

// MemoryOpener serves registered in-memory datasets by path.
type MemoryOpener struct {
	mu       sync.RWMutex
	datasets map[string]*Memory
}

func NewMemoryOpener(datasets ...*Memory) *MemoryOpener {
	o := &MemoryOpener{datasets: make(map[string]*Memory)}
	for _, ds := range datasets {
		o.Add(ds)
	}
	return o
}

func (o *MemoryOpener) Add(ds *Memory) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.datasets[ds.Name] = ds
}

func (o *MemoryOpener) Open(path string) (Dataset, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ds, ok := o.datasets[path]
	if !ok {
		return nil, fmt.Errorf("failed to open raster %s: no such dataset", path)
	}
	return ds, nil
}

// Uniform builds a band of n identical values.
func Uniform(n int, value float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}
