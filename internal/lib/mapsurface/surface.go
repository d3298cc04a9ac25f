// Package mapsurface defines the contract consumed from the interactive
// map renderer: geometry sources, styled layers, layer-scoped pointer
// events, per-feature hover state and camera fitting. The renderer itself
// (pan/zoom/tiles/projection) is an external collaborator; this package
// only names the surface area the route tooling depends on, plus an
// in-memory implementation for tests and headless use.
package mapsurface

import (
	"github.com/paulmach/orb/geojson"

	"github.com/saltline/passage/internal/lib/geo"
)

// Config carries the renderer binding configuration. It is passed
// explicitly at construction of a concrete surface; there is no
// process-wide access token.
type Config struct {
	AccessToken string `koanf:"access_token"`
	StyleURL    string `koanf:"style_url"`
}

// Pointer event names. Layer-scoped events are hit-tested against the
// layer's rendered geometry by the renderer.
const (
	EventClick      = "click"
	EventMouseDown  = "mousedown"
	EventMouseMove  = "mousemove"
	EventMouseUp    = "mouseup"
	EventMouseEnter = "mouseenter"
	EventMouseLeave = "mouseleave"
)

// Event is a pointer event delivered by the surface. FeatureID is set for
// layer-scoped events when the renderer hit-tested a feature.
type Event struct {
	Position  geo.Point
	FeatureID string
}

// HandlerFunc receives pointer events.
type HandlerFunc func(Event)

// ListenerHandle identifies a registered handler so it can be detached.
type ListenerHandle uint64

// Padding reserves screen-space around a camera fit, in pixels. Asymmetric
// so an overlay panel occluding one side of the map can be kept clear.
type Padding struct {
	Top    float64 `koanf:"top"`
	Bottom float64 `koanf:"bottom"`
	Left   float64 `koanf:"left"`
	Right  float64 `koanf:"right"`
}

// FitOptions controls a camera fit-to-bounds operation.
type FitOptions struct {
	Padding Padding
	// MaxZoom caps how far the camera zooms in, so a short route does not
	// over-zoom. Zero means no cap.
	MaxZoom float64
}

// LayerSpec describes a styled layer referencing a geometry source, in the
// renderer's layer vocabulary ("line", "circle", "symbol"). Filter, Layout
// and Paint are passed through to the renderer untyped.
type LayerSpec struct {
	ID     string
	Type   string
	Source string
	Filter []any
	Layout map[string]any
	Paint  map[string]any
}

// Surface is the consumed map renderer interface.
type Surface interface {
	// Loaded reports whether the renderer has finished initial load.
	Loaded() bool
	// StyleReady reports whether the style is loaded; layer registration
	// against a surface whose style is still loading fails.
	StyleReady() bool

	// AddSource registers a geometry source. Source data mutations go
	// through SetSourceData, the renderer's thread-safe update entry
	// point; callers never hold references into rendered geometry.
	AddSource(id string, data *geojson.FeatureCollection) error
	SetSourceData(id string, data *geojson.FeatureCollection) error
	HasSource(id string) bool
	RemoveSource(id string)

	AddLayer(spec LayerSpec) error
	HasLayer(id string) bool
	RemoveLayer(id string)
	// MoveLayerToTop raises a layer above the base style layers.
	MoveLayerToTop(id string)

	// On subscribes to a surface-wide pointer event.
	On(event string, fn HandlerFunc) ListenerHandle
	// OnLayer subscribes to a pointer event hit-tested against one layer.
	OnLayer(event, layerID string, fn HandlerFunc) ListenerHandle
	// Off detaches a previously registered handler; unknown handles are
	// ignored.
	Off(handle ListenerHandle)

	// SetFeatureState sets ephemeral per-feature state (hover) on one
	// feature of a source.
	SetFeatureState(sourceID, featureID string, state map[string]any)

	FitBounds(b geo.Bounds, opts FitOptions)

	// SetCursor sets the pointer cursor affordance; empty restores the
	// default.
	SetCursor(cursor string)
	EnablePan()
	DisablePan()
}
