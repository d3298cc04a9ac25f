// Package route maintains the ordered waypoint sequence for one sailing
// trip and keeps the derived leg distance/duration fields consistent under
// edits. Structural changes (insert, remove, reorder) recompute every leg;
// single-point moves recompute only the two adjacent legs so the hot
// drag-to-move path stays cheap.
package route

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/saltline/passage/internal/lib/geo"
)

var keyCounter atomic.Uint64

// NewSequenceKey returns a route-unique waypoint identifier.
func NewSequenceKey() string {
	return fmt.Sprintf("wp_%d_%d", time.Now().UnixMilli(), keyCounter.Add(1))
}

// Clone returns a copy of the waypoint slice. Mutating operations work on
// copies so callers holding the previous route are never surprised.
func Clone(waypoints []Waypoint) []Waypoint {
	if waypoints == nil {
		return nil
	}
	out := make([]Waypoint, len(waypoints))
	copy(out, waypoints)
	return out
}

// RecalculateAll recomputes the leg distance and duration for every
// waypoint except the first, using each waypoint's immediate predecessor in
// the current order. The first waypoint passes through unchanged with a
// zero-length leg.
func RecalculateAll(waypoints []Waypoint) []Waypoint {
	if len(waypoints) == 0 {
		return []Waypoint{}
	}

	out := Clone(waypoints)
	out[0].LegDistanceNM = 0
	for i := 1; i < len(out); i++ {
		setLeg(&out[i], out[i-1].Position)
	}
	return out
}

// InsertAt inserts the waypoint at the given index and recomputes every
// leg; insertion changes the neighbour relationships of both the new node
// and its old successor. Indices are clamped to the valid range.
func InsertAt(waypoints []Waypoint, w Waypoint, index int) []Waypoint {
	if w.SequenceKey == "" {
		w.SequenceKey = NewSequenceKey()
	}
	if index < 0 {
		index = 0
	}
	if index > len(waypoints) {
		index = len(waypoints)
	}

	out := make([]Waypoint, 0, len(waypoints)+1)
	out = append(out, waypoints[:index]...)
	out = append(out, w)
	out = append(out, waypoints[index:]...)
	return RecalculateAll(out)
}

// Append adds the waypoint to the end of the route.
func Append(waypoints []Waypoint, w Waypoint) []Waypoint {
	return InsertAt(waypoints, w, len(waypoints))
}

// RemoveByKey removes the waypoint with the given sequence key and
// recomputes the remaining legs. Returns ErrWaypointNotFound when the key
// does not match; removing from an empty route is a plain miss, not a
// corruption.
func RemoveByKey(waypoints []Waypoint, key string) ([]Waypoint, error) {
	idx, ok := FindByKey(waypoints, key)
	if !ok {
		return waypoints, fmt.Errorf("remove %q: %w", key, ErrWaypointNotFound)
	}

	out := make([]Waypoint, 0, len(waypoints)-1)
	out = append(out, waypoints[:idx]...)
	out = append(out, waypoints[idx+1:]...)
	return RecalculateAll(out), nil
}

// Resequence replaces the route order wholesale, re-derives the per-day
// display stamps (one calendar day apart starting at start) and recomputes
// every leg. Sequence keys are preserved; waypoints without one are
// assigned a fresh key.
func Resequence(waypoints []Waypoint, start time.Time) []Waypoint {
	out := Clone(waypoints)
	for i := range out {
		if out[i].SequenceKey == "" {
			out[i].SequenceKey = NewSequenceKey()
		}
		out[i].Day = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return RecalculateAll(out)
}

// UpdatePosition moves a single waypoint and recomputes only the leg into
// it and the leg out of it. This path fires on every pointer-move frame
// during a drag, so it must not touch the other legs.
func UpdatePosition(waypoints []Waypoint, key string, position geo.Point) ([]Waypoint, error) {
	idx, ok := FindByKey(waypoints, key)
	if !ok {
		return waypoints, fmt.Errorf("move %q: %w", key, ErrWaypointNotFound)
	}

	out := Clone(waypoints)
	out[idx].Position = position

	if idx > 0 {
		setLeg(&out[idx], out[idx-1].Position)
	}
	if idx < len(out)-1 {
		setLeg(&out[idx+1], out[idx].Position)
	}
	return out, nil
}

// FindByKey returns the index of the waypoint with the given sequence key.
func FindByKey(waypoints []Waypoint, key string) (int, bool) {
	for i := range waypoints {
		if waypoints[i].SequenceKey == key {
			return i, true
		}
	}
	return 0, false
}

// Equal reports whether two routes visit the same places in the same
// order. Derived leg fields and day stamps are ignored so a resequence
// alone does not count as a change.
func Equal(a, b []Waypoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Label != b[i].Label || a[i].Position != b[i].Position {
			return false
		}
	}
	return true
}

// TotalDistance sums the leg distances of the route in nautical miles.
func TotalDistance(waypoints []Waypoint) float64 {
	var total float64
	for i := range waypoints {
		total += waypoints[i].LegDistanceNM
	}
	return total
}

// Points returns the waypoint positions in sequence order.
func Points(waypoints []Waypoint) []geo.Point {
	points := make([]geo.Point, len(waypoints))
	for i := range waypoints {
		points[i] = waypoints[i].Position
	}
	return points
}

func setLeg(w *Waypoint, prev geo.Point) {
	distance := geo.Distance(prev, w.Position)
	w.LegDistanceNM = math.Round(distance*10) / 10
	w.LegDuration = geo.Duration(distance)
}
