package geo

import (
	"math"
)

// Polyline encoding per Google's algorithm, precision 5. Routing providers
// return geometry in this format and the store persists paths with it.

// DecodePolyline decodes a polyline-encoded string into coordinates.
func DecodePolyline(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lat += latDelta

		lonDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lon += lonDelta

		coords = append(coords, Coordinate{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return coords
}

// decodePolylineValue decodes a single delta value starting at index.
// Returns the decoded value and the new index position.
func decodePolylineValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Two's complement for negative deltas.
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// EncodePolyline encodes coordinates into a polyline string.
func EncodePolyline(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLon := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * 1e5))
		lon := int(math.Round(coord.Lon * 1e5))

		encoded = encodePolylineValue(encoded, lat-prevLat)
		encoded = encodePolylineValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

func encodePolylineValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}
