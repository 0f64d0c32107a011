package geo

import (
	"math"
	"testing"
)

// straightPath builds a path of n points heading north from origin, spaced
// spacingMeters apart.
func straightPath(origin Coordinate, n int, spacingMeters float64) []Coordinate {
	const metersPerDegreeLat = 111195
	path := make([]Coordinate, n)
	for i := 0; i < n; i++ {
		path[i] = Coordinate{
			Lat: origin.Lat + float64(i)*spacingMeters/metersPerDegreeLat,
			Lon: origin.Lon,
		}
	}
	return path
}

func TestOverlapFraction_SelfOverlap(t *testing.T) {
	path := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 20, 50)

	got := OverlapFraction(path, path, DefaultOverlapProximityMeters)
	if got != 1.0 {
		t.Errorf("expected overlap of path with itself to be 1.0, got %f", got)
	}
}

func TestOverlapFraction_Disjoint(t *testing.T) {
	a := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 20, 50)
	// Well over 20m east of a.
	b := straightPath(Coordinate{Lat: 40.0, Lon: -73.99}, 20, 50)

	got := OverlapFraction(a, b, DefaultOverlapProximityMeters)
	if got != 0 {
		t.Errorf("expected 0 overlap for disjoint paths, got %f", got)
	}
}

func TestOverlapFraction_Symmetric(t *testing.T) {
	a := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 30, 50)
	b := straightPath(Coordinate{Lat: 40.005, Lon: -74.0}, 10, 50)

	ab := OverlapFraction(a, b, DefaultOverlapProximityMeters)
	ba := OverlapFraction(b, a, DefaultOverlapProximityMeters)
	if ab != ba {
		t.Errorf("overlap not symmetric: overlap(a,b)=%f overlap(b,a)=%f", ab, ba)
	}
}

func TestOverlapFraction_PartialOverlap(t *testing.T) {
	// b traces the first half of a, then diverges east.
	a := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 20, 50)
	b := make([]Coordinate, 0, 20)
	b = append(b, a[:10]...)
	for i := 10; i < 20; i++ {
		b = append(b, Coordinate{Lat: a[9].Lat, Lon: a[9].Lon + float64(i-9)*0.001})
	}

	got := OverlapFraction(a, b, DefaultOverlapProximityMeters)
	if got <= 0.3 || got >= 0.8 {
		t.Errorf("expected partial overlap around 0.5, got %f", got)
	}
}

func TestOverlapFraction_EmptyPaths(t *testing.T) {
	path := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 5, 50)

	if got := OverlapFraction(nil, path, DefaultOverlapProximityMeters); got != 0 {
		t.Errorf("expected 0 for empty first path, got %f", got)
	}
	if got := OverlapFraction(path, nil, DefaultOverlapProximityMeters); got != 0 {
		t.Errorf("expected 0 for empty second path, got %f", got)
	}
}

func TestOverlapFraction_DefaultProximity(t *testing.T) {
	a := straightPath(Coordinate{Lat: 40.0, Lon: -74.0}, 10, 50)
	got := OverlapFraction(a, a, 0)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected default proximity to apply, got overlap %f", got)
	}
}
