package geo

import (
	"math"
	"testing"
)

func TestDecodePolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Coordinate
	}{
		{
			name:    "single point",
			encoded: "_p~iF~ps|U",
			expected: []Coordinate{
				{Lat: 38.5, Lon: -120.2},
			},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Coordinate{
				{Lat: 38.5, Lon: -120.2},
				{Lat: 40.7, Lon: -120.95},
				{Lat: 43.252, Lon: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecodePolyline(tt.encoded)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}
			for i, coord := range result {
				if math.Abs(coord.Lat-tt.expected[i].Lat) > 0.001 ||
					math.Abs(coord.Lon-tt.expected[i].Lon) > 0.001 {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], coord)
				}
			}
		})
	}
}

func TestDecodePolyline_Empty(t *testing.T) {
	if result := DecodePolyline(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestEncodePolyline_RoundTrip(t *testing.T) {
	coords := []Coordinate{
		{Lat: 40.7829, Lon: -73.9654},
		{Lat: 40.7680, Lon: -73.9819},
		{Lat: 40.7580, Lon: -73.9855},
	}

	decoded := DecodePolyline(EncodePolyline(coords))
	if len(decoded) != len(coords) {
		t.Fatalf("expected %d coordinates after round trip, got %d", len(coords), len(decoded))
	}

	for i := range coords {
		// Precision 5 gives ~1e-5 degree resolution.
		if math.Abs(decoded[i].Lat-coords[i].Lat) > 0.00001 ||
			math.Abs(decoded[i].Lon-coords[i].Lon) > 0.00001 {
			t.Errorf("coordinate %d: expected %+v, got %+v", i, coords[i], decoded[i])
		}
	}
}

func TestEncodePolyline_Empty(t *testing.T) {
	if result := EncodePolyline(nil); result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}
