package generator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
	"github.com/mister-10k/laps-routes-generator/internal/store"
)

const testCity = "hoboken"

var schedStart = geo.Coordinate{Lat: 40.74, Lon: -74.03}

// placeCandidate positions a POI at the given straight-line distance and
// bearing from the scheduler test start.
func placeCandidate(name string, distanceMeters, bearingDeg float64) poi.PointOfInterest {
	rad := bearingDeg * math.Pi / 180
	latOffset := distanceMeters * math.Cos(rad) / 111195
	lonOffset := distanceMeters * math.Sin(rad) / (111195 * math.Cos(schedStart.Lat*math.Pi/180))
	return poi.PointOfInterest{
		ID:       name,
		Name:     name,
		Coord:    geo.Coordinate{Lat: schedStart.Lat + latOffset, Lon: schedStart.Lon + lonOffset},
		Priority: poi.PriorityLandmark,
	}
}

// radiusSource returns its candidates only for searches near one specific
// radius, keeping the other thresholds quiet.
type radiusSource struct {
	matchRadius float64
	candidates  []poi.PointOfInterest
	err         error
}

func (s *radiusSource) Search(_ context.Context, _ geo.Coordinate, radiusMeters float64) ([]poi.PointOfInterest, error) {
	if s.err != nil {
		return nil, s.err
	}
	if math.Abs(radiusMeters-s.matchRadius) > 1 {
		return nil, nil
	}
	return append([]poi.PointOfInterest(nil), s.candidates...), nil
}

// scriptedRouter serves both legs of a candidate from a per-destination
// script. It records each distinct turnaround routed so tests can assert how
// many candidates were attempted.
type scriptedRouter struct {
	mu           sync.Mutex
	legMeters    map[geo.Coordinate]float64
	errByCoord   map[geo.Coordinate]error
	turnarounds  map[geo.Coordinate]struct{}
	defaultMeter float64
}

func newScriptedRouter(defaultLegMeters float64) *scriptedRouter {
	return &scriptedRouter{
		legMeters:    make(map[geo.Coordinate]float64),
		errByCoord:   make(map[geo.Coordinate]error),
		turnarounds:  make(map[geo.Coordinate]struct{}),
		defaultMeter: defaultLegMeters,
	}
}

func (r *scriptedRouter) PathAlternatives(_ context.Context, origin, destination geo.Coordinate) ([]routing.PathAlternative, error) {
	turnaround := destination
	if destination == schedStart {
		turnaround = origin
	}

	r.mu.Lock()
	r.turnarounds[turnaround] = struct{}{}
	err := r.errByCoord[turnaround]
	meters, scripted := r.legMeters[turnaround]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !scripted {
		meters = r.defaultMeter
	}

	// A short synthetic leg; geometry only needs to be non-highway-like.
	geometry := []geo.Coordinate{origin, midpoint(origin, destination), destination}
	return []routing.PathAlternative{{Geometry: geometry, DistanceMeters: meters}}, nil
}

func (r *scriptedRouter) attempted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turnarounds)
}

func midpoint(a, b geo.Coordinate) geo.Coordinate {
	return geo.Coordinate{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

// recordingObserver captures event ordering.
type recordingObserver struct {
	events        []string
	persistedSize []int
}

func (o *recordingObserver) Progress(string) {}
func (o *recordingObserver) RouteGenerated(rt *route.Route) {
	o.events = append(o.events, "generated:"+rt.Turnaround.Name)
}
func (o *recordingObserver) PersistRequested(routes []*route.Route) {
	o.events = append(o.events, "persist")
	o.persistedSize = append(o.persistedSize, len(routes))
}

func newTestScheduler(src poi.Source, router route.PathSource, repo store.Repository, obs Observer) *Scheduler {
	synth := route.NewSynthesizer(route.SynthesizerConfig{
		Router:     router,
		Classifier: quality.NewClassifier(quality.Config{}, zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
	return NewScheduler(SchedulerConfig{
		POISource:   src,
		Synthesizer: synth,
		Store:       repo,
		Observer:    obs,
		Logger:      zerolog.Nop(),
	})
}

func schedRequest() Request {
	return Request{City: testCity, Start: poi.NewStartPoint("start", "Home", schedStart)}
}

func candidateSet(n int) []poi.PointOfInterest {
	candidates := make([]poi.PointOfInterest, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Park %02d", i)
		bearing := float64(i) * 360 / float64(n)
		candidates = append(candidates, placeCandidate(name, 2000, bearing))
	}
	return candidates
}

func TestScheduler_QuotaStopsAtTen(t *testing.T) {
	threshold := route.TimeThreshold(10)
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidateSet(12)}
	// 1448 m per leg: total 1.80 mi, valid only for the 10 minute threshold.
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	assert.Len(t, result.Routes, 10)
	assert.Equal(t, 10, result.Coverage[threshold])
	assert.Equal(t, StateSatisfied, result.States[threshold])
	// Candidates 11 and 12 are never attempted.
	assert.Equal(t, 10, router.attempted())

	saved, err := repo.LoadRoutes(context.Background(), testCity)
	require.NoError(t, err)
	assert.Len(t, saved, 10)
}

func TestScheduler_ThresholdsWithoutRoutesAreSkipped(t *testing.T) {
	threshold := route.TimeThreshold(10)
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidateSet(12)}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	// Every threshold except the one that got routes ends empty.
	assert.Len(t, result.Skipped, len(route.AllThresholds())-1)
	assert.NotContains(t, result.Skipped, threshold)
	assert.Contains(t, result.Skipped, route.TimeThreshold(5))
	assert.Equal(t, StateExhausted, result.States[route.TimeThreshold(5)])
}

func TestScheduler_ConsecutiveOutOfRangeTripsBreaker(t *testing.T) {
	threshold := route.TimeThreshold(10)
	// 25 candidates, every route lands at 5.0 mi, far outside the 10 minute
	// range.
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidateSet(25)}
	router := newScriptedRouter(5.0 / 2 * geo.MetersPerMile)
	repo := store.NewInMemoryRepository()

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	assert.Empty(t, result.Routes)
	assert.Contains(t, result.Skipped, threshold)
	// The breaker trips after 20 consecutive misses; candidates 21-25 are
	// never attempted.
	assert.Equal(t, 20, router.attempted())

	blacklisted, err := repo.ThresholdBlacklist(context.Background(), testCity, threshold)
	require.NoError(t, err)
	assert.Len(t, blacklisted, 20)
}

func TestScheduler_TransientFailureDoesNotResetBreaker(t *testing.T) {
	threshold := route.TimeThreshold(10)
	// One candidate per priority tier, so the filter's within-tier shuffle
	// cannot change the attempt order.
	candidates := make([]poi.PointOfInterest, 0, 30)
	for i := 0; i < 30; i++ {
		c := placeCandidate(fmt.Sprintf("Park %02d", i), 2000, float64(i)*12)
		c.Priority = i + 1
		candidates = append(candidates, c)
	}
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidates}

	// Every route lands at 5.0 mi, far outside the 10 minute range, except
	// the 11th candidate, which fails transiently mid-streak.
	router := newScriptedRouter(5.0 / 2 * geo.MetersPerMile)
	router.errByCoord[candidates[10].Coord] = routing.ErrProviderUnavailable
	repo := store.NewInMemoryRepository()

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	assert.Empty(t, result.Routes)
	assert.Contains(t, result.Skipped, threshold)
	// The transient failure leaves the miss counter untouched: 20 misses
	// accumulate by attempt 21 and the breaker trips there, not at 30.
	assert.Equal(t, 21, router.attempted())

	blacklisted, blErr := repo.ThresholdBlacklist(context.Background(), testCity, threshold)
	require.NoError(t, blErr)
	assert.Len(t, blacklisted, 20)
}

func TestScheduler_ConsultsThresholdBlacklist(t *testing.T) {
	threshold := route.TimeThreshold(10)
	candidates := candidateSet(3)
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidates}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()
	require.NoError(t, repo.AddThresholdBlacklist(context.Background(), testCity, threshold, candidates[0].Name))

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	require.Len(t, result.Routes, 2)
	for _, rt := range result.Routes {
		assert.NotEqual(t, candidates[0].Name, rt.Turnaround.Name)
	}
}

func TestScheduler_FatalAbortsAndPersistsPartial(t *testing.T) {
	threshold := route.TimeThreshold(10)
	candidates := candidateSet(5)
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidates}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()

	// Three candidates hit a fatal auth failure. Tier shuffling decides how
	// many acceptances land before the first poisoned candidate aborts the
	// run; either way the accepted routes must already be persisted.
	for _, c := range candidates[:3] {
		router.errByCoord[c.Coord] = routing.ErrAuthFailure
	}

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrAuthFailure)

	// Whatever was accepted before the abort is persisted.
	saved, loadErr := repo.LoadRoutes(context.Background(), testCity)
	require.NoError(t, loadErr)
	assert.Len(t, saved, len(result.Routes))
}

func TestScheduler_RetainedRoutesAlreadySatisfy(t *testing.T) {
	threshold := route.TimeThreshold(10)
	repo := store.NewInMemoryRepository()

	existing := make([]*route.Route, 0, 10)
	for i := 0; i < 10; i++ {
		rt := &route.Route{
			ID:         fmt.Sprintf("rt_existing_%02d", i),
			Name:       fmt.Sprintf("Old Park %02d", i),
			Turnaround: placeCandidate(fmt.Sprintf("Old Park %02d", i), 2000, float64(i)*36),
			TotalMiles: 1.8,
		}
		rt.RecomputeSessionTimes()
		existing = append(existing, rt)
	}
	require.NoError(t, repo.SaveRoutes(context.Background(), testCity, existing))

	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidateSet(5)}
	router := newScriptedRouter(1448)

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)

	assert.Equal(t, StateSatisfied, result.States[threshold])
	assert.Equal(t, 10, result.Coverage[threshold])
	// No routing call was spent on the satisfied threshold.
	assert.Zero(t, router.attempted())
}

func TestScheduler_EventOrdering(t *testing.T) {
	threshold := route.TimeThreshold(10)
	src := &radiusSource{matchRadius: threshold.SearchRadiusMeters(), candidates: candidateSet(3)}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()
	obs := &recordingObserver{}

	result, err := newTestScheduler(src, router, repo, obs).Run(context.Background(), schedRequest())
	require.NoError(t, err)
	require.Len(t, result.Routes, 3)

	// Each acceptance emits generated then persist, in order, and each
	// persist carries the full retained set at that point.
	require.Len(t, obs.events, 6)
	for i := 0; i < 3; i++ {
		assert.Contains(t, obs.events[2*i], "generated:")
		assert.Equal(t, "persist", obs.events[2*i+1])
	}
	assert.Equal(t, []int{1, 2, 3}, obs.persistedSize)
}

func TestScheduler_TransientSearchFailureSkipsRun(t *testing.T) {
	src := &radiusSource{err: poi.ErrSearchUnavailable}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()

	result, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Routes)
	assert.Len(t, result.Skipped, len(route.AllThresholds()))
}

func TestScheduler_FatalSearchFailureAborts(t *testing.T) {
	src := &radiusSource{err: poi.ErrQuotaExceeded}
	router := newScriptedRouter(1448)
	repo := store.NewInMemoryRepository()

	_, err := newTestScheduler(src, router, repo, nil).Run(context.Background(), schedRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, poi.ErrQuotaExceeded)
}
