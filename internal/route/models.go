// Package route holds the out-and-back route data model and the synthesizer
// that builds routes from turnaround candidates.
package route

import (
	"math"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
)

// Session pace bounds. A threshold of m minutes maps to the round-trip
// distance range coverable between these paces.
const (
	MinPaceMPH = 8.0
	MaxPaceMPH = 13.0
)

// Threshold ladder bounds, in minutes.
const (
	MinThresholdMinutes  = 5
	MaxThresholdMinutes  = 120
	ThresholdStepMinutes = 5
)

// TimeThreshold is a target session duration in minutes.
type TimeThreshold int

// AllThresholds returns every threshold in ascending minute order.
func AllThresholds() []TimeThreshold {
	var ts []TimeThreshold
	for m := MinThresholdMinutes; m <= MaxThresholdMinutes; m += ThresholdStepMinutes {
		ts = append(ts, TimeThreshold(m))
	}
	return ts
}

// Minutes returns the threshold's session duration in minutes.
func (t TimeThreshold) Minutes() int {
	return int(t)
}

// MinDistanceMiles returns the shortest round-trip distance valid for this
// threshold.
func (t TimeThreshold) MinDistanceMiles() float64 {
	return MinPaceMPH * float64(t) / 60
}

// MaxDistanceMiles returns the longest round-trip distance valid for this
// threshold.
func (t TimeThreshold) MaxDistanceMiles() float64 {
	return MaxPaceMPH * float64(t) / 60
}

// TargetDistanceMiles returns the midpoint of the valid distance range.
func (t TimeThreshold) TargetDistanceMiles() float64 {
	return (t.MinDistanceMiles() + t.MaxDistanceMiles()) / 2
}

// SearchRadiusMeters returns the POI search radius for this threshold: half
// the target round-trip distance, since the route goes out and back.
func (t TimeThreshold) SearchRadiusMeters() float64 {
	return t.TargetDistanceMiles() / 2 * geo.MetersPerMile
}

// IsValidDistance reports whether a round-trip distance in miles satisfies
// this threshold. Inclusive at both bounds.
func (t TimeThreshold) IsValidDistance(miles float64) bool {
	return miles >= t.MinDistanceMiles() && miles <= t.MaxDistanceMiles()
}

// ValidSessionTimes returns every threshold satisfied by a round-trip
// distance. Recomputed from distance rather than persisted; the pace bounds
// are fixed, so the result is deterministic.
func ValidSessionTimes(totalMiles float64) []TimeThreshold {
	var ts []TimeThreshold
	for _, t := range AllThresholds() {
		if t.IsValidDistance(totalMiles) {
			ts = append(ts, t)
		}
	}
	return ts
}

// distanceBands is the fixed ladder of coarse distance tags used for UI
// grouping.
var distanceBands = []float64{1, 2, 4, 7.5, 9.5, 13, 16}

// NearestDistanceBand returns the band closest to the given distance.
func NearestDistanceBand(miles float64) float64 {
	nearest := distanceBands[0]
	best := math.Abs(miles - nearest)
	for _, band := range distanceBands[1:] {
		if d := math.Abs(miles - band); d < best {
			best = d
			nearest = band
		}
	}
	return nearest
}

// Route is a generated out-and-back route. Created by the synthesizer,
// replaced wholesale (new identity) on regeneration, removed on blacklist or
// bulk clear.
type Route struct {
	// ID uniquely identifies this route instance.
	ID string

	// Name is the display name, taken from the turnaround point.
	Name string

	// Start is the starting point.
	Start poi.PointOfInterest

	// Turnaround is the point at the far end of the route.
	Turnaround poi.PointOfInterest

	// TotalMiles is the round-trip distance as reported by the routing
	// provider (sum of both legs, not recomputed from coordinates).
	TotalMiles float64

	// DistanceBand is the nearest coarse distance tag.
	DistanceBand float64

	// OutboundPath and ReturnPath are the leg geometries.
	OutboundPath []geo.Coordinate
	ReturnPath   []geo.Coordinate

	// ValidSessionTimes is the set of thresholds this route satisfies,
	// derived from TotalMiles.
	ValidSessionTimes []TimeThreshold
}

// SatisfiesThreshold reports whether the route counts toward a threshold's
// coverage.
func (r *Route) SatisfiesThreshold(t TimeThreshold) bool {
	return t.IsValidDistance(r.TotalMiles)
}

// RecomputeSessionTimes refreshes the derived threshold set from the stored
// total distance. Called on load and after regeneration.
func (r *Route) RecomputeSessionTimes() {
	r.ValidSessionTimes = ValidSessionTimes(r.TotalMiles)
}
