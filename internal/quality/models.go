// Package quality classifies candidate route geometry: highway-likeness,
// forbidden zone containment, and travel along user-drawn forbidden paths.
package quality

import (
	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// ForbiddenZone is a named axis-aligned bounding box over a known
// non-walkable structure (tunnel, limited-access bridge). Static reference
// data, read-only to the engine.
type ForbiddenZone struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the coordinate falls inside the zone.
func (z ForbiddenZone) Contains(c geo.Coordinate) bool {
	return c.Lat >= z.MinLat && c.Lat <= z.MaxLat &&
		c.Lon >= z.MinLon && c.Lon <= z.MaxLon
}

// ForbiddenPath is a named user-drawn polyline marking a corridor routes must
// not travel along. The engine evaluates candidates against the snapshot
// supplied at generation time; editing is owned by the caller.
type ForbiddenPath struct {
	Name   string
	Points []geo.Coordinate
}

// Snapshot is the set of forbidden geometry active for a generation run.
type Snapshot struct {
	Zones []ForbiddenZone
	Paths []ForbiddenPath
}
