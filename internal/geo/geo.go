// Package geo provides the geometric primitives used by the route
// generation pipeline: great-circle distance, bearings, point-to-segment
// distance, polyline encoding, and path overlap measurement.
package geo

import (
	"math"
)

const (
	// earthRadiusMeters is the mean Earth radius used for haversine math.
	earthRadiusMeters = 6371000

	// MetersPerMile converts route distances between miles and meters.
	MetersPerMile = 1609.34
)

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate is within the valid lat/lon ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// PointToSegment returns the minimum distance in meters from p to the segment
// between a and b. Uses an equirectangular projection around the segment,
// which is accurate at the sub-kilometer scales the classifier operates on.
func PointToSegment(p, a, b Coordinate) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return Haversine(p, a)
	}

	// Project onto a local flat plane centered on the segment start.
	cosLat := math.Cos(a.Lat * math.Pi / 180)
	ax, ay := 0.0, 0.0
	bx := (b.Lon - a.Lon) * cosLat
	by := b.Lat - a.Lat
	px := (p.Lon - a.Lon) * cosLat
	py := p.Lat - a.Lat

	segLenSq := (bx-ax)*(bx-ax) + (by-ay)*(by-ay)
	t := ((px-ax)*(bx-ax) + (py-ay)*(by-ay)) / segLenSq
	t = math.Max(0, math.Min(1, t))

	nearest := Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return Haversine(p, nearest)
}

// PointToPath returns the minimum distance in meters from p to any segment of
// the path. A single-point path degrades to point-to-point distance.
func PointToPath(p Coordinate, path []Coordinate) float64 {
	if len(path) == 0 {
		return math.Inf(1)
	}
	if len(path) == 1 {
		return Haversine(p, path[0])
	}

	minDist := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		if d := PointToSegment(p, path[i], path[i+1]); d < minDist {
			minDist = d
		}
	}
	return minDist
}

// PathLength returns the total length of a coordinate sequence in meters.
func PathLength(path []Coordinate) float64 {
	if len(path) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}
