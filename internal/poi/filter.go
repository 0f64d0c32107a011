package poi

import (
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// Pre-filter bounds. Real walking paths run 1.3–1.6x longer than the
// straight line, so candidates outside this straight-line window cannot land
// inside the threshold's distance range and are dropped before any routing
// call is spent on them.
const (
	// minCandidateDistanceMeters is the floor of the pre-filter window.
	minCandidateDistanceMeters = 500

	// minDistanceDivisor relates the window floor to the threshold's
	// minimum round-trip distance.
	minDistanceDivisor = 4

	// maxDistanceDivisor relates the window ceiling to the threshold's
	// maximum round-trip distance.
	maxDistanceDivisor = 1.5
)

// FilterInput carries the constraints for one filtering pass.
type FilterInput struct {
	// Start is the route starting coordinate.
	Start geo.Coordinate

	// MinDistanceMiles and MaxDistanceMiles are the active threshold's
	// round-trip distance bounds.
	MinDistanceMiles float64
	MaxDistanceMiles float64

	// Direction is an optional cardinal preference.
	Direction Direction

	// UsedNames holds POI names already consumed by this run or by
	// previously retained routes. Duplicate names (two identically named
	// parks) must not both be selected.
	UsedNames map[string]struct{}

	// BlacklistedNames holds manually excluded names for the city.
	BlacklistedNames map[string]struct{}

	// ThresholdBlacklistedNames holds names proven unusable for the active
	// threshold only.
	ThresholdBlacklistedNames map[string]struct{}
}

// Filter narrows a raw POI list into a priority-ordered candidate sequence.
// Each stage strictly narrows the set; the ordering of stages matters only
// for the logged diagnostics. The output groups candidates by ascending
// priority tier and shuffles uniformly within each tier, so famous places are
// tried first but run-to-run order varies.
func Filter(raw []PointOfInterest, in FilterInput, logger zerolog.Logger) []PointOfInterest {
	candidates := raw

	candidates = dropNames(candidates, in.UsedNames)
	logger.Debug().Int("remaining", len(candidates)).Msg("filter: dropped already-used names")

	candidates = dropNames(candidates, in.BlacklistedNames)
	logger.Debug().Int("remaining", len(candidates)).Msg("filter: dropped blacklisted names")

	candidates = dropNames(candidates, in.ThresholdBlacklistedNames)
	logger.Debug().Int("remaining", len(candidates)).Msg("filter: dropped threshold-blacklisted names")

	candidates = dropOutsideDistanceWindow(candidates, in)
	logger.Debug().Int("remaining", len(candidates)).Msg("filter: dropped candidates outside distance window")

	if in.Direction != DirectionNone {
		candidates = dropOutsideSector(candidates, in)
		logger.Debug().
			Int("remaining", len(candidates)).
			Str("direction", string(in.Direction)).
			Msg("filter: dropped candidates outside direction sector")
	}

	return orderByTier(candidates)
}

// The drop stages allocate fresh slices: the input is the caller's, and the
// scheduler reuses it across thresholds.
func dropNames(pois []PointOfInterest, names map[string]struct{}) []PointOfInterest {
	if len(names) == 0 {
		return pois
	}
	kept := make([]PointOfInterest, 0, len(pois))
	for _, p := range pois {
		if _, excluded := names[p.Name]; !excluded {
			kept = append(kept, p)
		}
	}
	return kept
}

// dropOutsideDistanceWindow applies the conservative straight-line pre-filter
// [max(500m, minDistance/4), maxDistance/1.5].
func dropOutsideDistanceWindow(pois []PointOfInterest, in FilterInput) []PointOfInterest {
	minMeters := in.MinDistanceMiles / minDistanceDivisor * geo.MetersPerMile
	if minMeters < minCandidateDistanceMeters {
		minMeters = minCandidateDistanceMeters
	}
	maxMeters := in.MaxDistanceMiles / maxDistanceDivisor * geo.MetersPerMile

	kept := make([]PointOfInterest, 0, len(pois))
	for _, p := range pois {
		d := geo.Haversine(in.Start, p.Coord)
		if d >= minMeters && d <= maxMeters {
			kept = append(kept, p)
		}
	}
	return kept
}

func dropOutsideSector(pois []PointOfInterest, in FilterInput) []PointOfInterest {
	kept := make([]PointOfInterest, 0, len(pois))
	for _, p := range pois {
		if in.Direction.inSector(geo.Bearing(in.Start, p.Coord)) {
			kept = append(kept, p)
		}
	}
	return kept
}

// orderByTier groups POIs by ascending priority tier and shuffles within each
// tier.
func orderByTier(pois []PointOfInterest) []PointOfInterest {
	byTier := make(map[int][]PointOfInterest)
	for _, p := range pois {
		byTier[p.Priority] = append(byTier[p.Priority], p)
	}

	tiers := make([]int, 0, len(byTier))
	for tier := range byTier {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	ordered := make([]PointOfInterest, 0, len(pois))
	for _, tier := range tiers {
		group := byTier[tier]
		rand.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		ordered = append(ordered, group...)
	}
	return ordered
}
