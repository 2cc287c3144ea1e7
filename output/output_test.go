package output

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}
	return values
}

func TestCreatePreviewImage_DownscalesPreservingAspect(t *testing.T) {
	width, height := 1024, 256
	payload, err := CreatePreviewImage([][]float64{ramp(width * height)}, width, height, 512)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestCreatePreviewImage_SingleBandIsGray(t *testing.T) {
	payload, err := CreatePreviewImage([][]float64{{0, 5, 10, math.NaN()}}, 2, 2, 512)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())

	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	r, _, _, _ = img.At(0, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.Zero(t, r)
}

func TestCreatePreviewImage_Errors(t *testing.T) {
	_, err := CreatePreviewImage(nil, 2, 2, 512)
	assert.Error(t, err)
	_, err = CreatePreviewImage([][]float64{{1, 2}}, 2, 2, 512)
	assert.Error(t, err)
}

func TestPreviewChannels(t *testing.T) {
	a, b, c, d := []float64{1}, []float64{2}, []float64{3}, []float64{4}
	assert.Equal(t, [3][]float64{a, a, a}, previewChannels([][]float64{a}))
	assert.Equal(t, [3][]float64{a, b, b}, previewChannels([][]float64{a, b}))
	assert.Equal(t, [3][]float64{a, b, c}, previewChannels([][]float64{a, b, c, d}))
}

func TestCreateMaskImage(t *testing.T) {
	mask := &artifact.Mask{Height: 2, Width: 2, Labels: []int32{0, 1, 2, 1}}
	payload, err := CreateMaskImage(mask, 512)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 2+10+3*20, img.Bounds().Dy())

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})

	_, err = CreateMaskImage(&artifact.Mask{}, 512)
	assert.Error(t, err)
}

func TestCreateFootprintGeoJson(t *testing.T) {
	records := []metadata.Record{{
		File: "slope.tif", Width: 10, Height: 5, Count: 2, CRS: "EPSG:4326",
		Bounds: metadata.Bounds{Left: 75, Bottom: 12, Right: 75.1, Top: 12.05},
	}}
	payload, err := CreateFootprintGeoJson(records)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string         `json:"type"`
				Coordinates [][][2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
	assert.Equal(t, "slope.tif", doc.Features[0].Properties["file"])
	assert.Contains(t, doc.Features[0].Geometry.Coordinates[0], [2]float64{75, 12})
	assert.Contains(t, doc.Features[0].Geometry.Coordinates[0], [2]float64{75.1, 12.05})
}

func TestCreateBandStatsCsv(t *testing.T) {
	median := 3.5
	records := []metadata.Record{{
		File: "slope.tif",
		Bands: []metadata.BandStats{
			{Band: 1, PercentMissing: 12.5, RawStats: metadata.Stats{Median: &median}},
			{Band: 2},
		},
	}}
	payload, err := CreateBandStatsCsv(records)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "file,band,percent_missing,percent_clipped"))
	assert.True(t, strings.HasPrefix(lines[1], "slope.tif,1,12.5,0,"))
	assert.Contains(t, lines[1], ",3.5,")
	assert.True(t, strings.HasPrefix(lines[2], "slope.tif,2,0,0,"))
}

func TestValueToColor(t *testing.T) {
	assert.Equal(t, color.RGBA{B: 255, A: 255}, valueToColor(0))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, valueToColor(0.5))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, valueToColor(1))
}

func TestCreateScoreHeatmapImage(t *testing.T) {
	payload, err := CreateScoreHeatmapImage([]float64{0, 1, 2, math.NaN()}, 2, 2, 512)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	r, _, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [2]uint32{0, 0xffff}, [2]uint32{r, b})
	r, _, _, _ = img.At(0, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r, "scores above 1 saturate")
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})

	_, err = CreateScoreHeatmapImage([]float64{0}, 2, 2, 512)
	assert.Error(t, err)
}

func TestCreateClassMapImage(t *testing.T) {
	legend := []ClassLegend{
		{Name: "LOW", Color: color.RGBA{G: 255, A: 255}},
		{Name: "HIGH", Color: color.RGBA{R: 255, A: 255}},
	}
	payload, err := CreateClassMapImage([]int{0, 1, 1, 7}, 2, 2, legend, 512)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 2+10+2*20, img.Bounds().Dy())

	r, g, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [2]uint32{0, 0xffff}, [2]uint32{r, g})
	r, g, _, _ = img.At(1, 0).RGBA()
	assert.Equal(t, [2]uint32{0xffff, 0}, [2]uint32{r, g})

	_, err = CreateClassMapImage([]int{0}, 1, 1, nil, 512)
	assert.Error(t, err)
}

func TestCreateRiskGeoJson(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{75, -0.05}, Max: orb.Point{75.1, 0.05}}
	payload, err := CreateRiskGeoJson(bound, map[string]any{"overall_risk_level": "HIGH", "confidence": 0.99})
	require.NoError(t, err)

	var doc struct {
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
	assert.Equal(t, "HIGH", doc.Features[0].Properties["overall_risk_level"])
	assert.Equal(t, 0.99, doc.Features[0].Properties["confidence"])
}
