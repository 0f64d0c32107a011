package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

func TestAllThresholds_AscendingLadder(t *testing.T) {
	ts := AllThresholds()
	require.Len(t, ts, 24)
	assert.Equal(t, 5, ts[0].Minutes())
	assert.Equal(t, 120, ts[len(ts)-1].Minutes())

	for i := 1; i < len(ts); i++ {
		assert.Equal(t, 5, ts[i].Minutes()-ts[i-1].Minutes())
	}
}

func TestTimeThreshold_DistanceOrdering(t *testing.T) {
	prevTarget := 0.0
	for _, th := range AllThresholds() {
		assert.Less(t, th.MinDistanceMiles(), th.TargetDistanceMiles(),
			"threshold %d: min must be below target", th.Minutes())
		assert.Less(t, th.TargetDistanceMiles(), th.MaxDistanceMiles(),
			"threshold %d: target must be below max", th.Minutes())
		assert.Greater(t, th.TargetDistanceMiles(), prevTarget,
			"target distance must increase with minutes")
		prevTarget = th.TargetDistanceMiles()
	}
}

func TestTimeThreshold_ThirtyMinuteScenario(t *testing.T) {
	th := TimeThreshold(30)

	assert.InDelta(t, 4.0, th.MinDistanceMiles(), 1e-9)
	assert.InDelta(t, 6.5, th.MaxDistanceMiles(), 1e-9)
	assert.InDelta(t, 5.25, th.TargetDistanceMiles(), 1e-9)
	assert.InDelta(t, 2.625*geo.MetersPerMile, th.SearchRadiusMeters(), 1e-6)
}

func TestTimeThreshold_IsValidDistanceInclusiveBounds(t *testing.T) {
	th := TimeThreshold(30)

	assert.True(t, th.IsValidDistance(th.MinDistanceMiles()))
	assert.True(t, th.IsValidDistance(th.MaxDistanceMiles()))
	assert.True(t, th.IsValidDistance(5.0))
	assert.False(t, th.IsValidDistance(3.999))
	assert.False(t, th.IsValidDistance(6.501))
}

func TestTimeThreshold_ShortRouteValidForShorterThreshold(t *testing.T) {
	// 3.0 miles misses the 30-minute range (4.0–6.5) but fits the
	// 20-minute range (2.67–4.33).
	assert.False(t, TimeThreshold(30).IsValidDistance(3.0))
	assert.True(t, TimeThreshold(20).IsValidDistance(3.0))
}

func TestValidSessionTimes(t *testing.T) {
	times := ValidSessionTimes(3.0)
	require.NotEmpty(t, times)

	for _, th := range times {
		assert.True(t, th.IsValidDistance(3.0))
	}
	assert.Contains(t, times, TimeThreshold(20))
	assert.NotContains(t, times, TimeThreshold(30))

	// Distances below every threshold's floor satisfy nothing.
	assert.Empty(t, ValidSessionTimes(0.1))
}

func TestValidSessionTimes_Idempotent(t *testing.T) {
	first := ValidSessionTimes(5.25)
	second := ValidSessionTimes(5.25)
	assert.Equal(t, first, second)
}

func TestNearestDistanceBand(t *testing.T) {
	tests := []struct {
		miles    float64
		expected float64
	}{
		{0.3, 1},
		{1.4, 1},
		{1.6, 2},
		{3.1, 4},
		{5.5, 4},
		{6.0, 7.5},
		{8.6, 9.5},
		{12.0, 13},
		{14.4, 13},
		{14.6, 16},
		{40.0, 16},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NearestDistanceBand(tt.miles),
			"band for %.1f miles", tt.miles)
	}
}

func TestRoute_RecomputeSessionTimes(t *testing.T) {
	r := &Route{TotalMiles: 5.25}
	r.RecomputeSessionTimes()

	require.NotEmpty(t, r.ValidSessionTimes)
	assert.Contains(t, r.ValidSessionTimes, TimeThreshold(30))
	assert.True(t, r.SatisfiesThreshold(TimeThreshold(30)))

	before := append([]TimeThreshold(nil), r.ValidSessionTimes...)
	r.RecomputeSessionTimes()
	assert.Equal(t, before, r.ValidSessionTimes)
}
