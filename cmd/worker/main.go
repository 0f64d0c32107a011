// Package main provides the entrypoint for the route generation worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/database"
	"github.com/mister-10k/laps-routes-generator/internal/generator"
	"github.com/mister-10k/laps-routes-generator/internal/poi/overpass"
	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
	"github.com/mister-10k/laps-routes-generator/internal/routing/osrm"
	"github.com/mister-10k/laps-routes-generator/internal/store"
	"github.com/mister-10k/laps-routes-generator/internal/telemetry"
	"github.com/mister-10k/laps-routes-generator/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "laps-routes-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting route generation worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "route-generation-jobs"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := telemetry.NewGenerationMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	registry := resilience.NewRegistry()

	osrmClient := osrm.NewClient(osrm.ClientConfig{
		BaseURL:  os.Getenv("OSRM_BASE_URL"),
		Registry: registry,
		Logger:   log,
	})
	router := routing.NewService(routing.ServiceConfig{
		Providers: []routing.Provider{osrmClient},
		Logger:    log,
	})

	poiSource := overpass.NewClient(overpass.ClientConfig{
		BaseURL:  os.Getenv("OVERPASS_BASE_URL"),
		Registry: registry,
		Logger:   log,
	})

	repo := store.NewPostgresRepository(pool)
	classifier := quality.NewClassifier(quality.DefaultConfig(), log)
	synthesizer := route.NewSynthesizer(route.SynthesizerConfig{
		Router:     router,
		Classifier: classifier,
		Logger:     log,
	})
	scheduler := generator.NewScheduler(generator.SchedulerConfig{
		POISource:   poiSource,
		Synthesizer: synthesizer,
		Store:       repo,
		Logger:      log,
	})

	job := worker.NewGenerationJob(worker.GenerationJobConfig{
		Scheduler: scheduler,
		Metrics:   metrics,
		Logger:    log,
	})

	server := &http.Server{
		Addr: ":" + port,
		Handler: worker.NewOpsRouter(worker.OpsConfig{
			Job:      job,
			Registry: registry,
			Version:  Version,
			Logger:   log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("ops server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops server error")
		}
	}()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handler, err := worker.NewPubSubHandler(workerCtx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		Job:              job,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer handler.Close()

	go func() {
		if err := handler.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Fatal().Err(err).Msg("pubsub handler error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("worker stopped")
}
