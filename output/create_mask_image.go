package output

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/firerisk/internal/artifact"
)

// Predefined colors for better visualization
var predefinedColors = []color.RGBA{
	{R: 255, G: 0, B: 0, A: 255},     // Red
	{R: 0, G: 255, B: 0, A: 255},     // Green
	{R: 0, G: 0, B: 255, A: 255},     // Blue
	{R: 255, G: 255, B: 0, A: 255},   // Yellow
	{R: 255, G: 0, B: 255, A: 255},   // Magenta
	{R: 0, G: 255, B: 255, A: 255},   // Cyan
	{R: 255, G: 128, B: 0, A: 255},   // Orange
	{R: 128, G: 0, B: 255, A: 255},   // Purple
	{R: 0, G: 128, B: 0, A: 255},     // Dark Green
	{R: 128, G: 128, B: 0, A: 255},   // Olive
}

// generateClusterColors assigns each label a palette color, cycling through
// the palette so colors stay stable between runs.
func generateClusterColors(labels []int32) map[int32]color.RGBA {
	clusterColors := make(map[int32]color.RGBA)
	for _, label := range labels {
		if _, ok := clusterColors[label]; !ok {
			clusterColors[label] = predefinedColors[int(uint32(label))%len(predefinedColors)]
		}
	}
	return clusterColors
}

// CreateMaskImage renders a segmentation mask with one color per cluster
// and a legend strip underneath.
func CreateMaskImage(mask *artifact.Mask, maxSize int) ([]byte, error) {
	if mask == nil || mask.Width == 0 || mask.Height == 0 {
		return nil, fmt.Errorf("empty mask")
	}

	clusterColors := generateClusterColors(mask.Labels)
	img := image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			img.SetRGBA(x, y, clusterColors[mask.At(x, y)])
		}
	}
	scaled := downscale(img, maxSize)

	clusterIDs := make([]int32, 0, len(clusterColors))
	for id := range clusterColors {
		clusterIDs = append(clusterIDs, id)
	}
	slices.Sort(clusterIDs)

	width := max(scaled.Bounds().Dx(), 120)
	legendSpacing := 20
	legendHeight := 10 + len(clusterIDs)*legendSpacing
	height := scaled.Bounds().Dy() + legendHeight

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(scaled, 0, 0)

	legendX, legendY := 10, scaled.Bounds().Dy()+5
	for i, id := range clusterIDs {
		y := legendY + i*legendSpacing
		c := clusterColors[id]

		dc.SetRGB255(int(c.R), int(c.G), int(c.B))
		dc.DrawRectangle(float64(legendX), float64(y), 15, 15)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(float64(legendX), float64(y), 15, 15)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.DrawString(fmt.Sprintf("Cluster %d", id), float64(legendX+25), float64(y+12))
	}

	return encodePNG(dc.Image())
}
