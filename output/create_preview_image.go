package output

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

func normalize(value, min, max float64) float64 {
	if max == min || math.IsNaN(value) {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func finiteRange(values []float64) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if math.IsInf(min, 1) {
		return 0, 0
	}
	return min, max
}

// previewChannels maps a raster's bands onto RGB: one band is replicated,
// two bands reuse the second for blue, otherwise the first three are used.
func previewChannels(bands [][]float64) [3][]float64 {
	switch len(bands) {
	case 1:
		return [3][]float64{bands[0], bands[0], bands[0]}
	case 2:
		return [3][]float64{bands[0], bands[1], bands[1]}
	default:
		return [3][]float64{bands[0], bands[1], bands[2]}
	}
}

// CreatePreviewImage renders up to three bands as an 8-bit RGB PNG whose
// larger side does not exceed maxSize.
func CreatePreviewImage(bands [][]float64, width, height, maxSize int) ([]byte, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands to render")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid preview size %dx%d", width, height)
	}
	channels := previewChannels(bands)
	for i, ch := range channels {
		if len(ch) != width*height {
			return nil, fmt.Errorf("channel %d holds %d values, want %d", i, len(ch), width*height)
		}
	}

	var ranges [3][2]float64
	for i, ch := range channels {
		ranges[i][0], ranges[i][1] = finiteRange(ch)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			var rgb [3]uint8
			for c := range channels {
				rgb[c] = uint8(math.Round(255 * normalize(channels[c][idx], ranges[c][0], ranges[c][1])))
			}
			img.SetRGBA(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}

	return encodePNG(downscale(img, maxSize))
}

// downscale shrinks img, preserving aspect ratio, so neither side exceeds
// maxSize. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	scale := math.Min(float64(maxSize)/float64(w), float64(maxSize)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gg.NewContextForImage(img).EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
