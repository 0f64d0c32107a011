package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mister-10k/laps-routes-generator/internal/generator"
	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
	"github.com/mister-10k/laps-routes-generator/internal/store"
)

// emptySource finds no candidates anywhere.
type emptySource struct{}

func (emptySource) Search(context.Context, geo.Coordinate, float64) ([]poi.PointOfInterest, error) {
	return nil, nil
}

// noRouteRouter never finds a path.
type noRouteRouter struct{}

func (noRouteRouter) PathAlternatives(context.Context, geo.Coordinate, geo.Coordinate) ([]routing.PathAlternative, error) {
	return nil, nil
}

func newTestJob() *GenerationJob {
	synth := route.NewSynthesizer(route.SynthesizerConfig{
		Router:     noRouteRouter{},
		Classifier: quality.NewClassifier(quality.DefaultConfig(), zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
	scheduler := generator.NewScheduler(generator.SchedulerConfig{
		POISource:   emptySource{},
		Synthesizer: synth,
		Store:       store.NewInMemoryRepository(),
		Logger:      zerolog.Nop(),
	})
	return NewGenerationJob(GenerationJobConfig{Scheduler: scheduler, Logger: zerolog.Nop()})
}

func TestGenerationJob_RecordsRunSummary(t *testing.T) {
	job := newTestJob()
	assert.Nil(t, job.LastRun())

	result, err := job.Run(context.Background(), generator.Request{
		City:  "hoboken",
		Start: poi.NewStartPoint("start", "Home", geo.Coordinate{Lat: 40.74, Lon: -74.03}),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Routes)

	summary := job.LastRun()
	require.NotNil(t, summary)
	assert.Equal(t, "hoboken", summary.City)
	assert.Zero(t, summary.Routes)
	assert.Equal(t, len(route.AllThresholds()), summary.Skipped)
	assert.Empty(t, summary.Error)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestBuildRequest_Validation(t *testing.T) {
	valid := GenerateMessage{JobType: "route_generation", City: "hoboken", Lat: 40.74, Lon: -74.03, Direction: "N"}

	req, err := buildRequest(valid)
	require.NoError(t, err)
	assert.Equal(t, "hoboken", req.City)
	assert.Equal(t, poi.DirectionNorth, req.Direction)
	assert.Equal(t, "hoboken start", req.Start.Name)

	_, err = buildRequest(GenerateMessage{JobType: "route_generation", Lat: 40.74, Lon: -74.03})
	assert.Error(t, err, "missing city must be rejected")

	_, err = buildRequest(GenerateMessage{JobType: "route_generation", City: "x", Lat: 95, Lon: 0})
	assert.Error(t, err, "out-of-range latitude must be rejected")

	_, err = buildRequest(GenerateMessage{JobType: "route_generation", City: "x", Lat: 40, Lon: -74, Direction: "NE"})
	assert.Error(t, err, "unknown direction must be rejected")
}

func TestOpsRouter(t *testing.T) {
	job := newTestJob()
	registry := resilience.NewRegistry()
	router := NewOpsRouter(OpsConfig{
		Job:      job,
		Registry: registry,
		Version:  "test",
		Logger:   zerolog.Nop(),
	})

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/ops/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No run recorded yet.
	resp, err = http.Get(server.URL + "/v1/ops/last-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = job.Run(context.Background(), generator.Request{
		City:  "hoboken",
		Start: poi.NewStartPoint("start", "Home", geo.Coordinate{Lat: 40.74, Lon: -74.03}),
	})
	require.NoError(t, err)

	resp, err = http.Get(server.URL + "/v1/ops/last-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "hoboken", summary.City)

	resp, err = http.Get(server.URL + "/v1/ops/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
