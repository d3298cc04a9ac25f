package mapsurface

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/saltline/passage/internal/lib/geo"
)

// FakeSurface is an in-memory Surface used by tests and headless runs. It
// records sources, layers, listeners, feature state and camera fits, and
// can replay pointer events into registered handlers.
type FakeSurface struct {
	mu sync.Mutex

	LoadedFlag     bool
	StyleReadyFlag bool
	// FailAddLayer makes the next AddLayer calls fail, simulating a layer
	// registration race while the style is still settling.
	FailAddLayer int

	PanEnabled bool
	Cursor     string

	sources map[string]*geojson.FeatureCollection
	layers  []LayerSpec

	nextHandle    ListenerHandle
	listeners     map[ListenerHandle]listener
	featureStates map[string]map[string]any

	FitCalls []FitCall
}

type listener struct {
	event   string
	layerID string // empty for surface-wide listeners
	fn      HandlerFunc
}

// FitCall records one FitBounds invocation.
type FitCall struct {
	Bounds  geo.Bounds
	Options FitOptions
}

// NewFakeSurface returns a loaded, style-ready fake surface with panning
// enabled.
func NewFakeSurface() *FakeSurface {
	return &FakeSurface{
		LoadedFlag:     true,
		StyleReadyFlag: true,
		PanEnabled:     true,
		sources:        make(map[string]*geojson.FeatureCollection),
		listeners:      make(map[ListenerHandle]listener),
		featureStates:  make(map[string]map[string]any),
	}
}

func (f *FakeSurface) Loaded() bool     { f.mu.Lock(); defer f.mu.Unlock(); return f.LoadedFlag }
func (f *FakeSurface) StyleReady() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.StyleReadyFlag }

// SetStyleReady flips style readiness; used to simulate a style that
// finishes loading after rendering has started.
func (f *FakeSurface) SetStyleReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StyleReadyFlag = ready
}

func (f *FakeSurface) AddSource(id string, data *geojson.FeatureCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sources[id]; exists {
		return fmt.Errorf("source %q already exists", id)
	}
	f.sources[id] = data
	return nil
}

func (f *FakeSurface) SetSourceData(id string, data *geojson.FeatureCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sources[id]; !exists {
		return fmt.Errorf("source %q does not exist", id)
	}
	f.sources[id] = data
	return nil
}

func (f *FakeSurface) HasSource(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sources[id]
	return ok
}

func (f *FakeSurface) RemoveSource(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, id)
}

// Source returns the current data of a source, or nil.
func (f *FakeSurface) Source(id string) *geojson.FeatureCollection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[id]
}

func (f *FakeSurface) AddLayer(spec LayerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAddLayer > 0 {
		f.FailAddLayer--
		return fmt.Errorf("layer %q: style not settled", spec.ID)
	}
	for _, l := range f.layers {
		if l.ID == spec.ID {
			return fmt.Errorf("layer %q already exists", spec.ID)
		}
	}
	if _, ok := f.sources[spec.Source]; !ok {
		return fmt.Errorf("layer %q references missing source %q", spec.ID, spec.Source)
	}
	f.layers = append(f.layers, spec)
	return nil
}

func (f *FakeSurface) HasLayer(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.layers {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (f *FakeSurface) RemoveLayer(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.layers {
		if l.ID == id {
			f.layers = append(f.layers[:i], f.layers[i+1:]...)
			return
		}
	}
}

func (f *FakeSurface) MoveLayerToTop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.layers {
		if l.ID == id {
			f.layers = append(append(f.layers[:i], f.layers[i+1:]...), l)
			return
		}
	}
}

// Layers returns the registered layer IDs in draw order.
func (f *FakeSurface) Layers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.layers))
	for i, l := range f.layers {
		ids[i] = l.ID
	}
	return ids
}

func (f *FakeSurface) On(event string, fn HandlerFunc) ListenerHandle {
	return f.register(listener{event: event, fn: fn})
}

func (f *FakeSurface) OnLayer(event, layerID string, fn HandlerFunc) ListenerHandle {
	return f.register(listener{event: event, layerID: layerID, fn: fn})
}

func (f *FakeSurface) register(l listener) ListenerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHandle++
	f.listeners[f.nextHandle] = l
	return f.nextHandle
}

func (f *FakeSurface) Off(handle ListenerHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, handle)
}

// ListenerCount reports how many handlers are currently attached.
func (f *FakeSurface) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *FakeSurface) SetFeatureState(sourceID, featureID string, state map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sourceID + "/" + featureID
	if f.featureStates[key] == nil {
		f.featureStates[key] = make(map[string]any)
	}
	for k, v := range state {
		f.featureStates[key][k] = v
	}
}

// FeatureState returns the ephemeral state recorded for a feature.
func (f *FakeSurface) FeatureState(sourceID, featureID string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.featureStates[sourceID+"/"+featureID]
}

func (f *FakeSurface) FitBounds(b geo.Bounds, opts FitOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FitCalls = append(f.FitCalls, FitCall{Bounds: b, Options: opts})
}

func (f *FakeSurface) SetCursor(cursor string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cursor = cursor
}

func (f *FakeSurface) EnablePan()  { f.mu.Lock(); defer f.mu.Unlock(); f.PanEnabled = true }
func (f *FakeSurface) DisablePan() { f.mu.Lock(); defer f.mu.Unlock(); f.PanEnabled = false }

// Fire delivers a surface-wide pointer event to matching handlers.
func (f *FakeSurface) Fire(event string, e Event) {
	for _, fn := range f.matching(event, "") {
		fn(e)
	}
}

// FireLayer delivers a layer-scoped pointer event, as if the renderer had
// hit-tested the event against that layer's geometry.
func (f *FakeSurface) FireLayer(event, layerID string, e Event) {
	for _, fn := range f.matching(event, layerID) {
		fn(e)
	}
}

func (f *FakeSurface) matching(event, layerID string) []HandlerFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fns []HandlerFunc
	for _, l := range f.listeners {
		if l.event == event && l.layerID == layerID {
			fns = append(fns, l.fn)
		}
	}
	return fns
}
