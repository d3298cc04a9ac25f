// Package editor translates pointer events on the rendered route into
// route mutations. It is a small state machine: idle until pointer-down on
// an intermediate point starts a drag session, back to idle on pointer-up
// anywhere. Clicking the route line while idle inserts a waypoint into the
// nearest segment. Every mutation is pushed out through a single callback;
// the editor holds a working copy of the route, not shared state.
package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saltline/passage/internal/lib/geo"
	"github.com/saltline/passage/internal/lib/mapsurface"
	"github.com/saltline/passage/internal/lib/route"
	"github.com/saltline/passage/internal/lib/viz"
)

// UpdateFunc receives the full updated route after every edit. It is the
// only channel from the editor back to its owner.
type UpdateFunc func(waypoints []route.Waypoint)

// Options configures a route editor.
type Options struct {
	Surface       mapsurface.Surface
	OnRouteUpdate UpdateFunc
	Logger        logrus.FieldLogger
	// Now supplies the start date for resequencing after an insertion.
	// Defaults to time.Now.
	Now func() time.Time
}

// Editor binds pointer handlers to a map surface for interactive route
// editing. New registers the handlers; Cleanup detaches them and restores
// surface interactivity.
type Editor struct {
	surface  mapsurface.Surface
	onUpdate UpdateFunc
	log      logrus.FieldLogger
	now      func() time.Time

	mu         sync.Mutex
	waypoints  []route.Waypoint
	draggedKey string
	dragStart  geo.Point
	handles    []mapsurface.ListenerHandle
	closed     bool
}

// New registers the editor's pointer handlers on the surface and returns
// the handle used to drive and eventually tear down the edit session.
func New(opts Options) *Editor {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ed := &Editor{
		surface:  opts.Surface,
		onUpdate: opts.OnRouteUpdate,
		log:      log,
		now:      now,
	}

	ed.handles = []mapsurface.ListenerHandle{
		ed.surface.OnLayer(mapsurface.EventClick, viz.LayerRoute, ed.handleRouteClick),
		ed.surface.OnLayer(mapsurface.EventMouseDown, viz.LayerIntermediatePoints, ed.handlePointMouseDown),
		ed.surface.On(mapsurface.EventMouseMove, ed.handleMouseMove),
		ed.surface.On(mapsurface.EventMouseUp, ed.handleMouseUp),
	}
	return ed
}

// SetWaypoints replaces the editor's working copy of the route. Called by
// the owner whenever the route changes outside the editor.
func (ed *Editor) SetWaypoints(waypoints []route.Waypoint) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.waypoints = route.Clone(waypoints)
}

// Dragging reports whether a drag session is in progress.
func (ed *Editor) Dragging() bool {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.draggedKey != ""
}

// Cleanup detaches all registered listeners and unconditionally restores
// surface interactivity. Safe to call multiple times and mid-drag; it is
// the single teardown path for every exit, including error paths.
func (ed *Editor) Cleanup() {
	ed.mu.Lock()
	if ed.closed {
		ed.mu.Unlock()
		return
	}
	ed.closed = true
	handles := ed.handles
	ed.handles = nil
	draggedKey := ed.draggedKey
	ed.draggedKey = ""
	ed.mu.Unlock()

	for _, h := range handles {
		ed.surface.Off(h)
	}
	if draggedKey != "" {
		ed.surface.SetFeatureState(viz.SourcePoints, draggedKey, map[string]any{"hover": false})
	}
	ed.surface.EnablePan()
	ed.surface.SetCursor("")
}

// handleRouteClick inserts a waypoint into the segment nearest the click.
// Ignored during a drag session, and with fewer than two waypoints there is
// no segment to click on.
func (ed *Editor) handleRouteClick(e mapsurface.Event) {
	ed.mu.Lock()
	if ed.closed || ed.draggedKey != "" || len(ed.waypoints) < 2 {
		ed.mu.Unlock()
		return
	}

	insertIndex := closestSegmentIndex(ed.waypoints, e.Position)
	added := route.Waypoint{
		Position: e.Position,
		Label:    fmt.Sprintf("Waypoint %d", len(ed.waypoints)+1),
		Comfort:  route.ComfortModerate,
		Note:     "Added waypoint",
	}

	updated := route.InsertAt(ed.waypoints, added, insertIndex)
	updated = route.Resequence(updated, ed.now())
	ed.waypoints = updated
	ed.mu.Unlock()

	ed.log.WithFields(logrus.Fields{
		"index": insertIndex,
		"lat":   e.Position.Lat,
		"lon":   e.Position.Lon,
	}).Debug("inserted waypoint from route click")
	ed.notify(updated)
}

func (ed *Editor) handlePointMouseDown(e mapsurface.Event) {
	if e.FeatureID == "" {
		return
	}

	ed.mu.Lock()
	if ed.closed {
		ed.mu.Unlock()
		return
	}
	ed.draggedKey = e.FeatureID
	ed.dragStart = e.Position
	ed.mu.Unlock()

	// Drag-to-move must not also pan the camera.
	ed.surface.DisablePan()
	ed.surface.SetCursor("grabbing")
	ed.surface.SetFeatureState(viz.SourcePoints, e.FeatureID, map[string]any{"hover": true})
}

// handleMouseMove applies the live pointer position to the dragged point.
// Fires on every move event; UpdatePosition recomputes only the adjacent
// legs so this path stays cheap at pointer-move frequency.
func (ed *Editor) handleMouseMove(e mapsurface.Event) {
	ed.mu.Lock()
	if ed.draggedKey == "" {
		ed.mu.Unlock()
		return
	}

	updated, err := route.UpdatePosition(ed.waypoints, ed.draggedKey, e.Position)
	if err != nil {
		// Route was replaced mid-drag and the key is gone. Leave the
		// model untouched; pointer-up still restores interactivity.
		ed.mu.Unlock()
		return
	}
	ed.waypoints = updated
	ed.mu.Unlock()

	ed.notify(updated)
}

func (ed *Editor) handleMouseUp(mapsurface.Event) {
	ed.mu.Lock()
	draggedKey := ed.draggedKey
	ed.draggedKey = ""
	ed.dragStart = geo.Point{}
	ed.mu.Unlock()

	if draggedKey == "" {
		return
	}

	ed.surface.SetFeatureState(viz.SourcePoints, draggedKey, map[string]any{"hover": false})
	ed.surface.EnablePan()
	ed.surface.SetCursor("")
}

func (ed *Editor) notify(waypoints []route.Waypoint) {
	if ed.onUpdate == nil {
		return
	}
	ed.onUpdate(route.Clone(waypoints))
}

// closestSegmentIndex returns the insertion index for a point clicked on
// the route: one past the start of the nearest consecutive segment.
// Requires len(waypoints) >= 2.
func closestSegmentIndex(waypoints []route.Waypoint, p geo.Point) int {
	minDistance := geo.PointToSegment(p, waypoints[0].Position, waypoints[1].Position)
	insertIndex := 1
	for i := 1; i < len(waypoints)-1; i++ {
		d := geo.PointToSegment(p, waypoints[i].Position, waypoints[i+1].Position)
		if d < minDistance {
			minDistance = d
			insertIndex = i + 1
		}
	}
	return insertIndex
}
