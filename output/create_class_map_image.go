package output

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

type ClassLegend struct {
	Name  string
	Color color.RGBA
}

// CreateClassMapImage paints each pixel with the color of its class index
// into legend and draws the legend underneath. Indexes outside the legend
// are painted white.
func CreateClassMapImage(classes []int, width, height int, legend []ClassLegend, maxSize int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid class map size %dx%d", width, height)
	}
	if len(classes) != width*height {
		return nil, fmt.Errorf("class map holds %d pixels, want %d", len(classes), width*height)
	}
	if len(legend) == 0 {
		return nil, fmt.Errorf("no legend provided")
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			class := classes[y*width+x]
			if class < 0 || class >= len(legend) {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
				continue
			}
			img.SetRGBA(x, y, legend[class].Color)
		}
	}
	scaled := downscale(img, maxSize)

	legendSpacing := 20
	mapHeight := scaled.Bounds().Dy()
	totalWidth := max(scaled.Bounds().Dx(), 120)
	totalHeight := mapHeight + 10 + len(legend)*legendSpacing

	dc := gg.NewContext(totalWidth, totalHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(scaled, 0, 0)

	legendX, legendY := 10, mapHeight+5
	for i, entry := range legend {
		y := legendY + i*legendSpacing

		// Draw color box
		dc.SetRGB255(int(entry.Color.R), int(entry.Color.G), int(entry.Color.B))
		dc.DrawRectangle(float64(legendX), float64(y), 15, 15)
		dc.Fill()

		// Draw border
		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(float64(legendX), float64(y), 15, 15)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.DrawStringAnchored(entry.Name, float64(legendX+20), float64(y+7), 0, 0.5)
	}

	return encodePNG(dc.Image())
}
