package route

import (
	"errors"

	"github.com/saltline/passage/internal/lib/geo"
)

// ErrWaypointNotFound is returned when a sequence key does not match any
// waypoint in the route.
var ErrWaypointNotFound = errors.New("waypoint not found")

// Comfort levels reported by the itinerary source. Descriptive only; the
// route model never computes them.
const (
	ComfortComfortable = "comfortable"
	ComfortModerate    = "moderate"
	ComfortChallenging = "challenging"
)

// Waypoint is one stop in a sailing itinerary. SequenceKey identifies the
// waypoint for map feature binding and drag targeting; it stays stable
// across reorders. Day is a display field regenerated on resequencing and
// carries no identity.
//
// JSON tags match the itinerary source's weekPlan entries so a plan can be
// decoded directly into waypoints.
type Waypoint struct {
	SequenceKey   string    `json:"key,omitempty"`
	Day           string    `json:"day"`
	Position      geo.Point `json:"coordinates"`
	Label         string    `json:"destination"`
	LegDistanceNM float64   `json:"distanceNM"`
	LegDuration   string    `json:"duration"`
	Comfort       string    `json:"comfortLevel"`
	Note          string    `json:"safety"`
}
