// Package services wires the route model, itinerary generation, map
// rendering and persistence into the operations the trip panel exposes.
package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saltline/passage/internal/cache"
	"github.com/saltline/passage/internal/clients/itinerary"
	"github.com/saltline/passage/internal/clients/trips"
	"github.com/saltline/passage/internal/lib/geo"
	"github.com/saltline/passage/internal/lib/route"
)

// Planner generates day-by-day sailing plans.
type Planner interface {
	GeneratePlan(ctx context.Context, req itinerary.PlanRequest) (itinerary.Plan, error)
}

// TripStore persists named trip snapshots.
type TripStore interface {
	SaveTrips(ctx context.Context, userID string, saved []trips.SavedTrip) error
	LoadTrips(ctx context.Context, userID string) ([]trips.SavedTrip, error)
	DeleteTrip(ctx context.Context, userID, tripID string) error
}

// Renderer keeps the map surface in sync with the route.
type Renderer interface {
	Render(ctx context.Context, waypoints []route.Waypoint) error
	Update(ctx context.Context, waypoints []route.Waypoint) error
	Clear()
	Close()
}

// RouteSink receives the route after the service mutates it. The map
// editor implements this; without the push its working copy goes stale
// and its next edit would resurrect the old route.
type RouteSink interface {
	SetWaypoints(waypoints []route.Waypoint)
}

const extendedPortsCacheKey = "extended_ports"

// TripServiceOptions configures a TripService.
type TripServiceOptions struct {
	Planner          Planner
	Store            TripStore
	Renderer         Renderer
	Cache            *cache.Cache
	// Editor, when set, is pushed the updated route after every mutation
	// the service makes itself.
	Editor           RouteSink
	UserID           string
	ExtendedPortsTTL time.Duration
	Logger           logrus.FieldLogger
	// Now supplies the start date for resequencing. Defaults to time.Now.
	Now func() time.Time
}

// TripService owns the active route for one trip-planning session and
// coordinates every mutation of it. All entry points are serialized; the
// route is never mutated outside this service once a session starts.
type TripService struct {
	planner  Planner
	store    TripStore
	renderer Renderer
	editor   RouteSink
	cache    *cache.Cache
	userID   string
	portsTTL time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	mu            sync.Mutex
	destinations  []route.Waypoint
	extendedPorts []itinerary.ExtendedPort
	savedTrips    []trips.SavedTrip
	currentTripID string
	lastSaved     []route.Waypoint
}

// NewTripService creates a trip service.
func NewTripService(opts TripServiceOptions) *TripService {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &TripService{
		planner:  opts.Planner,
		store:    opts.Store,
		renderer: opts.Renderer,
		editor:   opts.Editor,
		cache:    opts.Cache,
		userID:   opts.UserID,
		portsTTL: opts.ExtendedPortsTTL,
		log:      log,
		now:      now,
	}
	s.restoreExtendedPorts()
	return s
}

// SetEditor attaches the edit session that should track the service's
// route. The editor's update callback and this service form a cycle, so
// hosts typically construct the service first and attach the editor here.
func (s *TripService) SetEditor(editor RouteSink) {
	s.mu.Lock()
	s.editor = editor
	waypoints := route.Clone(s.destinations)
	s.mu.Unlock()

	if editor != nil {
		editor.SetWaypoints(waypoints)
	}
}

// syncEditor pushes the route to the attached edit session. Called after
// every mutation made outside the editor, with the lock released.
func (s *TripService) syncEditor(waypoints []route.Waypoint) {
	s.mu.Lock()
	editor := s.editor
	s.mu.Unlock()

	if editor != nil {
		editor.SetWaypoints(waypoints)
	}
}

// restoreExtendedPorts reloads the nearby-port list cached by an earlier
// session so the destination picker works before the next plan fetch.
func (s *TripService) restoreExtendedPorts() {
	if s.cache == nil {
		return
	}
	var ports []itinerary.ExtendedPort
	found, err := s.cache.Get(extendedPortsCacheKey, &ports)
	if err != nil {
		s.log.WithError(err).Warn("failed to restore cached extended ports")
		return
	}
	if found {
		s.extendedPorts = ports
	}
}

// StartPlan fetches a fresh itinerary for the given starting port and
// replaces the active route with it. The previous route and map geometry
// are cleared before the fetch; a new plan always supersedes in-flight
// state. A failed fetch leaves the session empty rather than partially
// populated. Visualization failure is logged, not returned: the route
// model stays valid even when the map does not come up.
func (s *TripService) StartPlan(ctx context.Context, port string, position geo.Point, customPrompt string) error {
	s.mu.Lock()
	s.destinations = nil
	s.currentTripID = ""
	s.lastSaved = nil
	s.mu.Unlock()
	s.syncEditor(nil)
	s.renderer.Clear()

	plan, err := s.planner.GeneratePlan(ctx, itinerary.PlanRequest{
		Port:         port,
		Position:     position,
		LocalTime:    s.now(),
		CustomPrompt: customPrompt,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch sailing plan: %w", err)
	}

	destinations := ensureKeys(plan.WeekPlan)
	destinations = route.RecalculateAll(destinations)

	s.mu.Lock()
	s.destinations = destinations
	s.extendedPorts = plan.ExtendedPorts
	s.mu.Unlock()
	s.syncEditor(destinations)

	if s.cache != nil {
		if err := s.cache.Set(extendedPortsCacheKey, plan.ExtendedPorts, s.portsTTL, "itinerary"); err != nil {
			s.log.WithError(err).Warn("failed to cache extended ports")
		}
	}

	if err := s.renderer.Render(ctx, destinations); err != nil {
		s.log.WithError(err).Warn("route visualization failed")
	}
	return nil
}

// Destinations returns a copy of the active route.
func (s *TripService) Destinations() []route.Waypoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return route.Clone(s.destinations)
}

// ExtendedPorts returns the nearby ports from the last plan.
func (s *TripService) ExtendedPorts() []itinerary.ExtendedPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]itinerary.ExtendedPort(nil), s.extendedPorts...)
}

// HandleRouteUpdate accepts a route pushed out by the map editor and
// refreshes the rendered geometry in place. Intended as the editor's
// update callback.
func (s *TripService) HandleRouteUpdate(waypoints []route.Waypoint) {
	s.mu.Lock()
	s.destinations = route.Clone(waypoints)
	s.mu.Unlock()

	if err := s.renderer.Update(context.Background(), waypoints); err != nil {
		s.log.WithError(err).Warn("route visualization update failed")
	}
}

// AddDestination appends a stop to the route and resequences days.
func (s *TripService) AddDestination(ctx context.Context, label string, position geo.Point) {
	s.mu.Lock()
	updated := route.Append(s.destinations, route.Waypoint{
		Label:    label,
		Position: position,
		Comfort:  route.ComfortModerate,
	})
	updated = route.Resequence(updated, s.now())
	s.destinations = updated
	s.mu.Unlock()
	s.syncEditor(updated)

	if err := s.renderer.Update(ctx, updated); err != nil {
		s.log.WithError(err).Warn("route visualization update failed")
	}
}

// RemoveDestination removes a stop by key. Removing the last stop clears
// the map geometry entirely.
func (s *TripService) RemoveDestination(ctx context.Context, key string) error {
	s.mu.Lock()
	updated, err := route.RemoveByKey(s.destinations, key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	updated = route.Resequence(updated, s.now())
	s.destinations = updated
	s.mu.Unlock()
	s.syncEditor(updated)

	if len(updated) == 0 {
		s.renderer.Clear()
		return nil
	}
	if err := s.renderer.Update(ctx, updated); err != nil {
		s.log.WithError(err).Warn("route visualization update failed")
	}
	return nil
}

// ReorderDestinations replaces the route order wholesale, as produced by
// the drag list. The keys must be a permutation of the current route.
func (s *TripService) ReorderDestinations(ctx context.Context, keys []string) error {
	s.mu.Lock()
	if len(keys) != len(s.destinations) {
		s.mu.Unlock()
		return fmt.Errorf("reorder has %d keys, route has %d waypoints", len(keys), len(s.destinations))
	}

	reordered := make([]route.Waypoint, 0, len(keys))
	for _, key := range keys {
		i, ok := route.FindByKey(s.destinations, key)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", route.ErrWaypointNotFound, key)
		}
		reordered = append(reordered, s.destinations[i])
	}

	updated := route.Resequence(reordered, s.now())
	s.destinations = updated
	s.mu.Unlock()
	s.syncEditor(updated)

	if err := s.renderer.Update(ctx, updated); err != nil {
		s.log.WithError(err).Warn("route visualization update failed")
	}
	return nil
}

// AvailableDestinations returns extended ports matching the search query
// that are not already on the route, sorted by name.
func (s *TripService) AvailableDestinations(query string) []itinerary.ExtendedPort {
	s.mu.Lock()
	defer s.mu.Unlock()

	onRoute := make(map[string]bool, len(s.destinations))
	for _, w := range s.destinations {
		onRoute[w.Label] = true
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var available []itinerary.ExtendedPort
	for _, p := range s.extendedPorts {
		if onRoute[p.Name] {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		available = append(available, p)
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Name < available[j].Name })
	return available
}

// SaveTrip snapshots the active route under the given name. The snapshot
// is kept locally even when remote persistence fails; the error is
// returned as a notice, never at the cost of local state.
func (s *TripService) SaveTrip(ctx context.Context, name string) (trips.SavedTrip, error) {
	s.mu.Lock()
	if len(s.destinations) == 0 {
		s.mu.Unlock()
		return trips.SavedTrip{}, fmt.Errorf("no route to save")
	}

	now := s.now()
	saved := trips.SavedTrip{
		ID:           s.currentTripID,
		Name:         name,
		Destinations: route.Clone(s.destinations),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if saved.ID == "" {
		saved.ID = trips.NewTripID()
	}

	replaced := false
	for i, existing := range s.savedTrips {
		if existing.ID == saved.ID {
			saved.CreatedAt = existing.CreatedAt
			s.savedTrips[i] = saved
			replaced = true
			break
		}
	}
	if !replaced {
		s.savedTrips = append(s.savedTrips, saved)
	}
	s.currentTripID = saved.ID
	s.lastSaved = route.Clone(s.destinations)
	snapshot := append([]trips.SavedTrip(nil), s.savedTrips...)
	s.mu.Unlock()

	if err := s.store.SaveTrips(ctx, s.userID, snapshot); err != nil {
		return saved, fmt.Errorf("trip kept locally, remote save failed: %w", err)
	}
	return saved, nil
}

// LoadSavedTrips fetches the user's stored trip collection.
func (s *TripService) LoadSavedTrips(ctx context.Context) ([]trips.SavedTrip, error) {
	loaded, err := s.store.LoadTrips(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved trips: %w", err)
	}

	s.mu.Lock()
	s.savedTrips = append([]trips.SavedTrip(nil), loaded...)
	s.mu.Unlock()
	return loaded, nil
}

// LoadTrip makes a previously saved trip the active route and renders it.
func (s *TripService) LoadTrip(ctx context.Context, tripID string) error {
	s.mu.Lock()
	var found *trips.SavedTrip
	for i := range s.savedTrips {
		if s.savedTrips[i].ID == tripID {
			found = &s.savedTrips[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return fmt.Errorf("trip %s not found", tripID)
	}

	destinations := route.RecalculateAll(ensureKeys(found.Destinations))
	s.destinations = destinations
	s.currentTripID = tripID
	s.lastSaved = route.Clone(destinations)
	s.mu.Unlock()
	s.syncEditor(destinations)

	if err := s.renderer.Render(ctx, destinations); err != nil {
		s.log.WithError(err).Warn("route visualization failed")
	}
	return nil
}

// DeleteTrip removes a saved trip. If it is the active trip, the session
// is cleared too. Local removal happens regardless of whether the remote
// delete succeeds.
func (s *TripService) DeleteTrip(ctx context.Context, tripID string) error {
	s.mu.Lock()
	kept := make([]trips.SavedTrip, 0, len(s.savedTrips))
	for _, trip := range s.savedTrips {
		if trip.ID != tripID {
			kept = append(kept, trip)
		}
	}
	s.savedTrips = kept

	wasActive := tripID == s.currentTripID
	if wasActive {
		s.currentTripID = ""
		s.destinations = nil
		s.lastSaved = nil
	}
	s.mu.Unlock()

	if wasActive {
		s.syncEditor(nil)
		s.renderer.Clear()
	}

	if err := s.store.DeleteTrip(ctx, s.userID, tripID); err != nil {
		return fmt.Errorf("trip removed locally, remote delete failed: %w", err)
	}
	return nil
}

// SavedTrips returns the known saved trips.
func (s *TripService) SavedTrips() []trips.SavedTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trips.SavedTrip(nil), s.savedTrips...)
}

// HasUnsavedChanges reports whether the active route differs from the
// last saved snapshot. Derived leg fields are ignored; only stop identity
// and position count.
func (s *TripService) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.destinations) == 0 {
		return false
	}
	if len(s.lastSaved) == 0 {
		return true
	}
	return !route.Equal(s.destinations, s.lastSaved)
}

// ExportKML writes the active route as a KML document.
func (s *TripService) ExportKML(w io.Writer, name string) error {
	return route.WriteKML(w, name, s.Destinations())
}

// RoutePolyline returns the active route encoded as a polyline string,
// suitable for compact sharing and URL embedding.
func (s *TripService) RoutePolyline() string {
	return geo.EncodePolyline(route.Points(s.Destinations()))
}

// Close tears down the renderer's listeners. The session's route state is
// discarded with the service.
func (s *TripService) Close() {
	s.renderer.Close()
}

// ensureKeys assigns sequence keys to waypoints that arrived without one,
// leaving existing keys untouched.
func ensureKeys(waypoints []route.Waypoint) []route.Waypoint {
	out := route.Clone(waypoints)
	for i := range out {
		if out[i].SequenceKey == "" {
			out[i].SequenceKey = route.NewSequenceKey()
		}
	}
	return out
}
