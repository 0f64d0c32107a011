package worker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
)

// OpsConfig holds the ops server's collaborators.
type OpsConfig struct {
	Job      *GenerationJob
	Registry *resilience.Registry
	Version  string
	Logger   zerolog.Logger
}

// NewOpsRouter builds the worker's operational HTTP surface: liveness,
// upstream provider health, and the last run's summary.
func NewOpsRouter(cfg OpsConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByRealIP)))

	r.Get("/v1/ops/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": cfg.Version,
		})
	})

	r.Get("/v1/ops/providers", func(w http.ResponseWriter, _ *http.Request) {
		health := cfg.Registry.AllHealth()
		status := http.StatusOK
		for _, h := range health {
			if !h.IsHealthy() {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, health)
	})

	r.Get("/v1/ops/last-run", func(w http.ResponseWriter, _ *http.Request) {
		summary := cfg.Job.LastRun()
		if summary == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no run recorded yet"})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
