package route

import (
	"errors"
	"fmt"
	"io"

	"github.com/twpayne/go-kml/v2"
)

// WriteKML exports the route as a KML document: one placemark per waypoint
// and a line string through the full sequence, suitable for sharing a trip
// with chart plotters and mapping tools.
func WriteKML(w io.Writer, name string, waypoints []Waypoint) error {
	if len(waypoints) == 0 {
		return errors.New("cannot export an empty route")
	}

	children := []kml.Element{kml.Name(name)}

	coords := make([]kml.Coordinate, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = kml.Coordinate{Lon: wp.Position.Lon, Lat: wp.Position.Lat}

		desc := fmt.Sprintf("Day %d", i+1)
		if wp.LegDistanceNM > 0 {
			desc = fmt.Sprintf("Day %d: %.1f NM, %s", i+1, wp.LegDistanceNM, wp.LegDuration)
		}
		if wp.Note != "" {
			desc += ". " + wp.Note
		}

		children = append(children, kml.Placemark(
			kml.Name(wp.Label),
			kml.Description(desc),
			kml.Point(kml.Coordinates(coords[i])),
		))
	}

	children = append(children, kml.Placemark(
		kml.Name(name+" track"),
		kml.LineString(kml.Coordinates(coords...)),
	))

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}
