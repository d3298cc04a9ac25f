// Package viz renders a route onto a map surface and keeps the rendered
// geometry in sync with model changes. A full render tears down and
// rebuilds every layer; the update path mutates the existing geometry
// sources in place so per-frame drag edits stay cheap.
package viz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saltline/passage/internal/lib/geo"
	"github.com/saltline/passage/internal/lib/mapsurface"
	"github.com/saltline/passage/internal/lib/route"
)

// Source and layer identifiers registered on the map surface. The editor
// targets LayerRoute and LayerIntermediatePoints by name.
const (
	SourceRoute  = "route"
	SourcePoints = "points"

	LayerRoute              = "route-line"
	LayerIntermediatePoints = "intermediate-points"
	LayerStartPoint         = "start-point"
	LayerStartPointStem     = "start-point-stem"
	LayerEndPoint           = "end-point"
	LayerEndPointStem       = "end-point-stem"
	LayerPointLabels        = "points-label"
)

var allLayers = []string{
	LayerRoute,
	LayerPointLabels,
	LayerStartPoint,
	LayerStartPointStem,
	LayerEndPoint,
	LayerEndPointStem,
	LayerIntermediatePoints,
}

var allSources = []string{SourceRoute, SourcePoints}

// ErrSurfaceNotReady is returned when the map surface never reported both
// loaded and style-ready within the configured attempts.
var ErrSurfaceNotReady = errors.New("map surface not ready")

// Options tunes rendering behaviour.
type Options struct {
	// Padding reserves space on the side occluded by the trip panel.
	Padding mapsurface.Padding
	MaxZoom float64
	// Attempts bounds the readiness/registration retries; Backoff is the
	// delay between them.
	Attempts int
	Backoff  time.Duration
	Logger   logrus.FieldLogger
}

// DefaultOptions matches the panel layout the tool ships with.
func DefaultOptions() Options {
	return Options{
		Padding:  mapsurface.Padding{Top: 114, Bottom: 50, Left: 450, Right: 50},
		MaxZoom:  12,
		Attempts: 3,
		Backoff:  200 * time.Millisecond,
	}
}

// Visualizer owns the rendered representation of one route on one surface.
type Visualizer struct {
	surface mapsurface.Surface
	opts    Options
	log     logrus.FieldLogger

	hoverHandles []mapsurface.ListenerHandle
}

// New creates a Visualizer bound to the given surface.
func New(surface mapsurface.Surface, opts Options) *Visualizer {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultOptions().Attempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Visualizer{surface: surface, opts: opts, log: log}
}

// Render rebuilds the full route geometry: the path through all waypoints,
// start/end markers with direction stems, intermediate point markers and
// labels. Idempotent under repeated calls; previous geometry is cleared
// before the rebuild. Registration is retried a bounded number of times to
// ride out the surface's asynchronous readiness; exhausting the retries
// reports a visualization failure without touching the model.
func (v *Visualizer) Render(ctx context.Context, waypoints []route.Waypoint) error {
	if len(waypoints) == 0 {
		return nil
	}

	if err := v.awaitReady(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= v.opts.Attempts; attempt++ {
		v.Clear()

		if err := v.addGeometry(waypoints); err != nil {
			lastErr = err
			v.log.WithError(err).WithField("attempt", attempt).Warn("route visualization attempt failed")
			if err := sleepCtx(ctx, v.opts.Backoff); err != nil {
				return err
			}
			continue
		}

		if missing := v.missingLayers(); len(missing) > 0 {
			lastErr = fmt.Errorf("layers not registered: %v", missing)
			v.log.WithField("attempt", attempt).Warn("not all layers were added")
			if err := sleepCtx(ctx, v.opts.Backoff); err != nil {
				return err
			}
			continue
		}

		v.wireHover()
		v.fitCamera(waypoints)
		return nil
	}

	return fmt.Errorf("route visualization failed after %d attempts: %w", v.opts.Attempts, lastErr)
}

// Update is the cheap incremental path used after small edits: it mutates
// the existing geometry sources in place through the surface's set-data
// entry point. Falls back to a full Render when the sources are missing.
func (v *Visualizer) Update(ctx context.Context, waypoints []route.Waypoint) error {
	if len(waypoints) == 0 {
		v.Clear()
		return nil
	}

	if !v.surface.HasSource(SourceRoute) || !v.surface.HasSource(SourcePoints) {
		return v.Render(ctx, waypoints)
	}

	if err := v.surface.SetSourceData(SourceRoute, routeFeature(waypoints)); err != nil {
		return fmt.Errorf("failed to update route source: %w", err)
	}
	if err := v.surface.SetSourceData(SourcePoints, pointFeatures(waypoints)); err != nil {
		return fmt.Errorf("failed to update points source: %w", err)
	}

	v.fitCamera(waypoints)
	return nil
}

// Clear removes all registered layers and sources. Safe to call when
// nothing is registered.
func (v *Visualizer) Clear() {
	for _, id := range allLayers {
		if v.surface.HasLayer(id) {
			v.surface.RemoveLayer(id)
		}
	}
	for _, id := range allSources {
		if v.surface.HasSource(id) {
			v.surface.RemoveSource(id)
		}
	}
}

// Close detaches the hover listeners. The rendered geometry is left in
// place; call Clear first to remove it.
func (v *Visualizer) Close() {
	for _, h := range v.hoverHandles {
		v.surface.Off(h)
	}
	v.hoverHandles = nil
}

func (v *Visualizer) awaitReady(ctx context.Context) error {
	for attempt := 1; attempt <= v.opts.Attempts; attempt++ {
		if v.surface.Loaded() && v.surface.StyleReady() {
			return nil
		}
		if err := sleepCtx(ctx, v.opts.Backoff); err != nil {
			return err
		}
	}
	if v.surface.Loaded() && v.surface.StyleReady() {
		return nil
	}
	return ErrSurfaceNotReady
}

func (v *Visualizer) addGeometry(waypoints []route.Waypoint) error {
	if err := v.surface.AddSource(SourceRoute, routeFeature(waypoints)); err != nil {
		return err
	}

	if err := v.surface.AddLayer(mapsurface.LayerSpec{
		ID:     LayerRoute,
		Type:   "line",
		Source: SourceRoute,
		Layout: map[string]any{
			"line-join":  "round",
			"line-cap":   "round",
			"visibility": "visible",
		},
		Paint: map[string]any{
			"line-color": "#0066ff",
			"line-width": []any{
				"case",
				[]any{"boolean", []any{"feature-state", "hover"}, false},
				8,
				5,
			},
			"line-opacity": 0.8,
		},
	}); err != nil {
		return err
	}
	v.surface.MoveLayerToTop(LayerRoute)

	if err := v.surface.AddSource(SourcePoints, pointFeatures(waypoints)); err != nil {
		return err
	}

	if err := v.surface.AddLayer(mapsurface.LayerSpec{
		ID:     LayerIntermediatePoints,
		Type:   "circle",
		Source: SourcePoints,
		Filter: []any{"==", []any{"get", "pointType"}, "intermediate"},
		Paint: map[string]any{
			"circle-radius": []any{
				"case",
				[]any{"boolean", []any{"feature-state", "hover"}, false},
				10,
				8,
			},
			"circle-color":        "#0066ff",
			"circle-stroke-width": 2,
			"circle-stroke-color": "#ffffff",
		},
	}); err != nil {
		return err
	}

	for _, marker := range []struct {
		layer, stem, pointType, color string
	}{
		{LayerEndPoint, LayerEndPointStem, "end", "#ff0000"},
		{LayerStartPoint, LayerStartPointStem, "start", "#00ff00"},
	} {
		if err := v.surface.AddLayer(mapsurface.LayerSpec{
			ID:     marker.layer,
			Type:   "circle",
			Source: SourcePoints,
			Filter: []any{"==", []any{"get", "pointType"}, marker.pointType},
			Paint: map[string]any{
				"circle-radius":          12,
				"circle-color":           marker.color,
				"circle-stroke-width":    2,
				"circle-stroke-color":    "#ffffff",
				"circle-translate":       []any{0, -6},
				"circle-pitch-alignment": "viewport",
			},
		}); err != nil {
			return err
		}

		if err := v.surface.AddLayer(mapsurface.LayerSpec{
			ID:     marker.stem,
			Type:   "symbol",
			Source: SourcePoints,
			Filter: []any{"==", []any{"get", "pointType"}, marker.pointType},
			Layout: map[string]any{
				"text-field":            "▼",
				"text-size":             14,
				"text-allow-overlap":    true,
				"text-ignore-placement": true,
				"text-offset":           []any{0, 0.6},
			},
			Paint: map[string]any{"text-color": marker.color},
		}); err != nil {
			return err
		}
	}

	return v.surface.AddLayer(mapsurface.LayerSpec{
		ID:     LayerPointLabels,
		Type:   "symbol",
		Source: SourcePoints,
		Layout: map[string]any{
			"text-field":  []any{"get", "title"},
			"text-anchor": "top",
			"text-offset": []any{0, 1.5},
			"text-size":   12,
		},
		Paint: map[string]any{
			"text-color":      "#000000",
			"text-halo-color": "#ffffff",
			"text-halo-width": 2,
		},
	})
}

func (v *Visualizer) missingLayers() []string {
	var missing []string
	for _, id := range allLayers {
		if !v.surface.HasLayer(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// wireHover raises the hovered visual state on intermediate points and a
// pointer cursor on the route path. Registered once per Visualizer;
// listeners survive layer teardown on the real renderer.
func (v *Visualizer) wireHover() {
	if len(v.hoverHandles) > 0 {
		return
	}

	v.hoverHandles = append(v.hoverHandles,
		v.surface.OnLayer(mapsurface.EventMouseEnter, LayerRoute, func(mapsurface.Event) {
			v.surface.SetCursor("pointer")
		}),
		v.surface.OnLayer(mapsurface.EventMouseLeave, LayerRoute, func(mapsurface.Event) {
			v.surface.SetCursor("")
		}),
		v.surface.OnLayer(mapsurface.EventMouseEnter, LayerIntermediatePoints, func(e mapsurface.Event) {
			v.surface.SetCursor("move")
			if e.FeatureID != "" {
				v.surface.SetFeatureState(SourcePoints, e.FeatureID, map[string]any{"hover": true})
			}
		}),
		v.surface.OnLayer(mapsurface.EventMouseLeave, LayerIntermediatePoints, func(e mapsurface.Event) {
			v.surface.SetCursor("")
			if e.FeatureID != "" {
				v.surface.SetFeatureState(SourcePoints, e.FeatureID, map[string]any{"hover": false})
			}
		}),
	)
}

func (v *Visualizer) fitCamera(waypoints []route.Waypoint) {
	bounds, err := geo.BoundsOf(route.Points(waypoints))
	if err != nil {
		return
	}
	v.surface.FitBounds(bounds, mapsurface.FitOptions{
		Padding: v.opts.Padding,
		MaxZoom: v.opts.MaxZoom,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
