package output

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// valueToColor maps [0, 1] onto a blue, green, red ramp.
func valueToColor(norm float64) color.RGBA {
	var r, g, b uint8
	if norm <= 0.5 {
		// Transition from blue to green
		ratio := norm / 0.5
		r = 0
		g = uint8(255 * ratio)
		b = uint8(255 * (1 - ratio))
	} else {
		// Transition from green to red
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * ratio)
		g = uint8(255 * (1 - ratio))
		b = 0
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// CreateScoreHeatmapImage renders per-pixel scores in [0, 1] as a color
// ramp. Scores are not rescaled, so heatmaps of different regions compare.
func CreateScoreHeatmapImage(scores []float64, width, height, maxSize int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid heatmap size %dx%d", width, height)
	}
	if len(scores) != width*height {
		return nil, fmt.Errorf("heatmap holds %d scores, want %d", len(scores), width*height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			score := scores[y*width+x]
			if math.IsNaN(score) {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			img.SetRGBA(x, y, valueToColor(normalize(score, 0, 1)))
		}
	}
	return encodePNG(downscale(img, maxSize))
}
