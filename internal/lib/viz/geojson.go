package viz

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/saltline/passage/internal/lib/route"
)

// routeFeature builds the line geometry through every waypoint in order.
func routeFeature(waypoints []route.Waypoint) *geojson.FeatureCollection {
	line := make(orb.LineString, 0, len(waypoints))
	for _, w := range waypoints {
		line = append(line, orb.Point{w.Position.Lon, w.Position.Lat})
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(line))
	return fc
}

// pointFeatures builds one feature per waypoint. The feature ID carries the
// waypoint's sequence key so hover and drag state can address individual
// points; pointType classifies each waypoint as start, intermediate or end.
func pointFeatures(waypoints []route.Waypoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, w := range waypoints {
		f := geojson.NewFeature(orb.Point{w.Position.Lon, w.Position.Lat})
		f.ID = w.SequenceKey
		f.Properties = geojson.Properties{
			"key":         w.SequenceKey,
			"title":       w.Label,
			"description": w.Note,
			"pointType":   classify(i, len(waypoints)),
		}
		fc.Append(f)
	}
	return fc
}

func classify(i, n int) string {
	switch {
	case i == 0:
		return "start"
	case i == n-1:
		return "end"
	default:
		return "intermediate"
	}
}
