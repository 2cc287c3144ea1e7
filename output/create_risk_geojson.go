package output

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CreateRiskGeoJson publishes a region's risk summary as a single polygon
// feature covering the analyzed raster.
func CreateRiskGeoJson(bound orb.Bound, properties map[string]any) ([]byte, error) {
	if bound.IsEmpty() {
		return nil, fmt.Errorf("empty bounds")
	}
	feature := geojson.NewFeature(bound.ToPolygon())
	for key, value := range properties {
		feature.Properties[key] = value
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc.MarshalJSON()
}
