package output

import (
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CreateFootprintGeoJson collects the extent of every raster of a region as
// polygon features.
func CreateFootprintGeoJson(records []metadata.Record) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		bound := orb.Bound{
			Min: orb.Point{r.Bounds.Left, r.Bounds.Bottom},
			Max: orb.Point{r.Bounds.Right, r.Bounds.Top},
		}
		feature := geojson.NewFeature(bound.ToPolygon())
		feature.Properties["file"] = r.File
		feature.Properties["width"] = r.Width
		feature.Properties["height"] = r.Height
		feature.Properties["count"] = r.Count
		feature.Properties["crs"] = r.CRS
		fc.Append(feature)
	}
	return fc.MarshalJSON()
}
