package geo

// DefaultOverlapProximityMeters is the distance at which a point on one path
// counts as coinciding with a point on another.
const DefaultOverlapProximityMeters = 20

// OverlapFraction measures how much two paths spatially coincide. For each
// point in a, the point is matched if any point in b lies within
// proximityMeters (and symmetrically for b against a); the result is the mean
// of the two match fractions, so it is symmetric and in [0, 1].
//
// The scan is O(len(a)*len(b)). Route polylines are tens to low hundreds of
// points, so no spatial index is warranted; revisit if paths grow past that.
func OverlapFraction(a, b []Coordinate, proximityMeters float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if proximityMeters <= 0 {
		proximityMeters = DefaultOverlapProximityMeters
	}

	return (matchFraction(a, b, proximityMeters) + matchFraction(b, a, proximityMeters)) / 2
}

// matchFraction returns the fraction of points in a that lie within
// proximityMeters of some point in b.
func matchFraction(a, b []Coordinate, proximityMeters float64) float64 {
	matched := 0
	for _, pa := range a {
		for _, pb := range b {
			if Haversine(pa, pb) <= proximityMeters {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(a))
}
