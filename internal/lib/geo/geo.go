package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusNM is the Earth's mean radius in nautical miles.
const EarthRadiusNM = 3440.065

// AverageSpeedKnots is the assumed cruising speed for leg duration estimates.
const AverageSpeedKnots = 5.0

// Valid reports whether the point has a plausible latitude and longitude.
func Valid(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance calculates the great-circle distance between two points in
// nautical miles using the haversine formula. Symmetric in its arguments;
// identical points yield exactly 0.
func Distance(a, b Point) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return 0
	}

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusNM * c
}

// Duration formats the estimated sailing time for a leg of the given length,
// assuming AverageSpeedKnots. Legs under an hour render as "Xmin", whole
// hours as "Xh", otherwise "Xh Ymin".
func Duration(distanceNM float64) string {
	hours := distanceNM / AverageSpeedKnots

	if hours < 1 {
		minutes := int(math.Round(hours * 60))
		if minutes == 60 {
			return "1h"
		}
		return fmt.Sprintf("%dmin", minutes)
	}

	wholeHours := int(math.Floor(hours))
	minutes := int(math.Round((hours - math.Floor(hours)) * 60))
	if minutes == 60 {
		wholeHours++
		minutes = 0
	}

	if minutes > 0 {
		return fmt.Sprintf("%dh %dmin", wholeHours, minutes)
	}
	return fmt.Sprintf("%dh", wholeHours)
}

// PointToSegment returns the distance from p to the nearest point on the
// segment from a to b, treating (lon, lat) as planar coordinates. The
// projection parameter is clamped to [0, 1] so the result is the distance
// to the segment itself, not the infinite line. Adequate at route-editing
// zoom levels; not a geodesic projection.
func PointToSegment(p, a, b Point) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat

	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lon-a.Lon, p.Lat-a.Lat)
	}

	t := ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	projLon := a.Lon + t*dx
	projLat := a.Lat + t*dy

	return math.Hypot(p.Lon-projLon, p.Lat-projLat)
}

// BoundsOf computes the bounding box of all given points.
func BoundsOf(points []Point) (Bounds, error) {
	if len(points) == 0 {
		return Bounds{}, errors.New("no points to compute bounds")
	}

	b := Bounds{
		MinLat: math.MaxFloat64,
		MaxLat: -math.MaxFloat64,
		MinLon: math.MaxFloat64,
		MaxLon: -math.MaxFloat64,
	}

	for _, p := range points {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
	}

	return b, nil
}

// EncodePolyline encodes a point sequence as a Google polyline string for
// compact route snapshots.
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a Google polyline string back to a point sequence.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Lat: coord[0], Lon: coord[1]}
		if !Valid(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

func toRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}
