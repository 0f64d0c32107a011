// Package main provides a one-shot catalog generation run for a single city.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/database"
	"github.com/mister-10k/laps-routes-generator/internal/generator"
	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/poi/overpass"
	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
	"github.com/mister-10k/laps-routes-generator/internal/routing/osrm"
	"github.com/mister-10k/laps-routes-generator/internal/store"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// consoleObserver prints scheduler progress to stdout.
type consoleObserver struct{}

func (consoleObserver) Progress(message string) { fmt.Println(message) }
func (consoleObserver) RouteGenerated(rt *route.Route) {
	fmt.Printf("  + %s (%.2f mi)\n", rt.Name, rt.TotalMiles)
}
func (consoleObserver) PersistRequested([]*route.Route) {}

func main() {
	var (
		city      = flag.String("city", "", "city key for persisted state (required)")
		lat       = flag.Float64("lat", 0, "start latitude (required)")
		lon       = flag.Float64("lon", 0, "start longitude (required)")
		startName = flag.String("start-name", "", "name for the starting point")
		direction = flag.String("direction", "", "cardinal direction preference: N, E, S or W")
		clear     = flag.Bool("clear", false, "drop the city's existing catalog first")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Str("service", "laps-routes-generator").
		Logger()

	if *city == "" || (*lat == 0 && *lon == 0) {
		flag.Usage()
		os.Exit(2)
	}

	start := geo.Coordinate{Lat: *lat, Lon: *lon}
	if !start.Valid() {
		log.Fatal().Float64("lat", *lat).Float64("lon", *lon).Msg("invalid start coordinate")
	}

	dir, err := poi.ParseDirection(*direction)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid direction")
	}

	name := *startName
	if name == "" {
		name = *city + " start"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	repo := store.NewPostgresRepository(pool)
	if *clear {
		if err := repo.ClearRoutes(ctx, *city); err != nil {
			log.Fatal().Err(err).Msg("failed to clear existing catalog")
		}
		log.Info().Str("city", *city).Msg("existing catalog cleared")
	}

	registry := resilience.NewRegistry()
	router := routing.NewService(routing.ServiceConfig{
		Providers: []routing.Provider{osrm.NewClient(osrm.ClientConfig{
			BaseURL:  os.Getenv("OSRM_BASE_URL"),
			Registry: registry,
			Logger:   log,
		})},
		Logger: log,
	})
	poiSource := overpass.NewClient(overpass.ClientConfig{
		BaseURL:  os.Getenv("OVERPASS_BASE_URL"),
		Registry: registry,
		Logger:   log,
	})

	scheduler := generator.NewScheduler(generator.SchedulerConfig{
		POISource: poiSource,
		Synthesizer: route.NewSynthesizer(route.SynthesizerConfig{
			Router:     router,
			Classifier: quality.NewClassifier(quality.DefaultConfig(), log),
			Logger:     log,
		}),
		Store:    repo,
		Observer: consoleObserver{},
		Logger:   log,
	})

	result, err := scheduler.Run(ctx, generator.Request{
		City:      *city,
		Start:     poi.NewStartPoint("start:"+*city, name, start),
		Direction: dir,
	})
	if err != nil {
		log.Error().Err(err).
			Int("routes_persisted", len(result.Routes)).
			Msg("generation aborted")
		os.Exit(1)
	}

	fmt.Printf("\n%d routes retained for %s (version %s)\n", len(result.Routes), *city, Version)
	for _, threshold := range route.AllThresholds() {
		fmt.Printf("  %3d min: %d routes\n", threshold.Minutes(), result.Coverage[threshold])
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("skipped thresholds:")
		for _, threshold := range result.Skipped {
			fmt.Printf(" %d", threshold.Minutes())
		}
		fmt.Println()
	}
}
