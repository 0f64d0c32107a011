// Package store persists generated routes and exclusion state per city. The
// engine writes threshold blacklist entries as it proves candidates unusable;
// the manual blacklist and forbidden geometry are user-owned and read-only
// here apart from the explicit add/remove operations.
package store

import (
	"context"
	"sync"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
)

// Repository defines the interface for route catalog persistence.
type Repository interface {
	// LoadRoutes retrieves the retained route set for a city. An empty
	// slice means no catalog has been generated yet.
	LoadRoutes(ctx context.Context, city string) ([]*route.Route, error)

	// SaveRoutes replaces the city's retained route set.
	SaveRoutes(ctx context.Context, city string, routes []*route.Route) error

	// ClearRoutes drops the city's retained route set.
	ClearRoutes(ctx context.Context, city string) error

	// ManualBlacklist returns the user-maintained per-city POI name
	// exclusions.
	ManualBlacklist(ctx context.Context, city string) ([]string, error)

	// AddManualBlacklist records a permanent POI name exclusion.
	AddManualBlacklist(ctx context.Context, city, name string) error

	// RemoveManualBlacklist clears a manual exclusion.
	RemoveManualBlacklist(ctx context.Context, city, name string) error

	// ThresholdBlacklist returns POI names proven unusable for the given
	// threshold in this city.
	ThresholdBlacklist(ctx context.Context, city string, threshold route.TimeThreshold) ([]string, error)

	// AddThresholdBlacklist records a POI name as unusable for one
	// threshold. The name stays eligible for every other threshold.
	AddThresholdBlacklist(ctx context.Context, city string, threshold route.TimeThreshold, name string) error

	// ForbiddenGeometry returns the city's active forbidden zones and
	// user-drawn forbidden paths.
	ForbiddenGeometry(ctx context.Context, city string) (quality.Snapshot, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for tests and local runs. Production should use the
// database-backed implementation.
type InMemoryRepository struct {
	mu        sync.RWMutex
	routes    map[string][]*route.Route
	manual    map[string]map[string]struct{}
	threshold map[string]map[int]map[string]struct{}
	forbidden map[string]quality.Snapshot
}

// NewInMemoryRepository creates a new in-memory route repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		routes:    make(map[string][]*route.Route),
		manual:    make(map[string]map[string]struct{}),
		threshold: make(map[string]map[int]map[string]struct{}),
		forbidden: make(map[string]quality.Snapshot),
	}
}

// LoadRoutes retrieves the retained route set for a city.
func (r *InMemoryRepository) LoadRoutes(_ context.Context, city string) ([]*route.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.routes[city]
	out := make([]*route.Route, 0, len(stored))
	for _, rt := range stored {
		out = append(out, copyRoute(rt))
	}
	return out, nil
}

// SaveRoutes replaces the city's retained route set.
func (r *InMemoryRepository) SaveRoutes(_ context.Context, city string, routes []*route.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]*route.Route, 0, len(routes))
	for _, rt := range routes {
		stored = append(stored, copyRoute(rt))
	}
	r.routes[city] = stored
	return nil
}

// ClearRoutes drops the city's retained route set.
func (r *InMemoryRepository) ClearRoutes(_ context.Context, city string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.routes, city)
	return nil
}

// ManualBlacklist returns the user-maintained exclusions for a city.
func (r *InMemoryRepository) ManualBlacklist(_ context.Context, city string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return namesOf(r.manual[city]), nil
}

// AddManualBlacklist records a permanent POI name exclusion.
func (r *InMemoryRepository) AddManualBlacklist(_ context.Context, city, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.manual[city] == nil {
		r.manual[city] = make(map[string]struct{})
	}
	r.manual[city][name] = struct{}{}
	return nil
}

// RemoveManualBlacklist clears a manual exclusion.
func (r *InMemoryRepository) RemoveManualBlacklist(_ context.Context, city, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.manual[city], name)
	return nil
}

// ThresholdBlacklist returns names proven unusable for one threshold.
func (r *InMemoryRepository) ThresholdBlacklist(_ context.Context, city string, threshold route.TimeThreshold) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return namesOf(r.threshold[city][threshold.Minutes()]), nil
}

// AddThresholdBlacklist records a name as unusable for one threshold.
func (r *InMemoryRepository) AddThresholdBlacklist(_ context.Context, city string, threshold route.TimeThreshold, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.threshold[city] == nil {
		r.threshold[city] = make(map[int]map[string]struct{})
	}
	minutes := threshold.Minutes()
	if r.threshold[city][minutes] == nil {
		r.threshold[city][minutes] = make(map[string]struct{})
	}
	r.threshold[city][minutes][name] = struct{}{}
	return nil
}

// ForbiddenGeometry returns the city's forbidden zones and paths.
func (r *InMemoryRepository) ForbiddenGeometry(_ context.Context, city string) (quality.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.forbidden[city], nil
}

// SetForbiddenGeometry installs a city's forbidden geometry. Test and local
// run helper; the user-facing editor owns this data in production.
func (r *InMemoryRepository) SetForbiddenGeometry(city string, snapshot quality.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forbidden[city] = snapshot
}

func namesOf(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	return names
}

// copyRoute creates a deep copy of a route.
func copyRoute(rt *route.Route) *route.Route {
	if rt == nil {
		return nil
	}

	routeCopy := *rt
	routeCopy.OutboundPath = append([]geo.Coordinate(nil), rt.OutboundPath...)
	routeCopy.ReturnPath = append([]geo.Coordinate(nil), rt.ReturnPath...)
	routeCopy.ValidSessionTimes = append([]route.TimeThreshold(nil), rt.ValidSessionTimes...)
	return &routeCopy
}
