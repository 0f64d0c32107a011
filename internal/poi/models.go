// Package poi provides the point-of-interest model, the search collaborator
// contract, and the candidate filtering pipeline.
package poi

import (
	"context"
	"errors"
	"fmt"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// Source errors.
var (
	// ErrSearchUnavailable indicates a transient search failure. The run
	// continues; the threshold simply sees no candidates this pass.
	ErrSearchUnavailable = errors.New("poi search unavailable")

	// ErrQuotaExceeded indicates an authorization or billing failure from
	// the search collaborator. Fatal for the whole run.
	ErrQuotaExceeded = errors.New("poi search quota or authorization failure")
)

// Priority tiers. Lower is more notable.
const (
	// PriorityLandmark marks the most recognizable places.
	PriorityLandmark = 1

	// DefaultStartPriority is assigned to synthetic starting points, which
	// have no search-derived notability.
	DefaultStartPriority = 3
)

// PointOfInterest is a resolved, named, geo-located place. Immutable once
// produced by the search collaborator.
type PointOfInterest struct {
	ID       string
	Name     string
	Coord    geo.Coordinate
	Category string
	Priority int
}

// NewStartPoint builds a synthetic POI for a route's starting coordinate.
func NewStartPoint(id, name string, coord geo.Coordinate) PointOfInterest {
	return PointOfInterest{
		ID:       id,
		Name:     name,
		Coord:    coord,
		Category: "start",
		Priority: DefaultStartPriority,
	}
}

// Source is the POI search collaborator.
type Source interface {
	// Search returns candidate POIs around a center point. May fail
	// transiently (ErrSearchUnavailable) or fatally (ErrQuotaExceeded).
	Search(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]PointOfInterest, error)
}

// Direction is an optional cardinal direction preference for candidates.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionNorth Direction = "N"
	DirectionEast  Direction = "E"
	DirectionSouth Direction = "S"
	DirectionWest  Direction = "W"
)

// ParseDirection validates an external direction string. The empty string
// means no preference.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionNone, DirectionNorth, DirectionEast, DirectionSouth, DirectionWest:
		return d, nil
	default:
		return DirectionNone, fmt.Errorf("unknown direction %q", s)
	}
}

// inSector reports whether a bearing in [0, 360) falls within the 90°-wide
// sector centered on the direction. Returns true for DirectionNone.
func (d Direction) inSector(bearing float64) bool {
	switch d {
	case DirectionNorth:
		return bearing >= 315 || bearing <= 45
	case DirectionEast:
		return bearing >= 45 && bearing <= 135
	case DirectionSouth:
		return bearing >= 135 && bearing <= 225
	case DirectionWest:
		return bearing >= 225 && bearing <= 315
	default:
		return true
	}
}
