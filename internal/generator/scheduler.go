package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/store"
)

// ThresholdState tracks one threshold's progress through a run.
type ThresholdState int

const (
	StateNotStarted ThresholdState = iota
	StateSearching
	StateSatisfied
	StateExhausted
)

func (s ThresholdState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateSearching:
		return "searching"
	case StateSatisfied:
		return "satisfied"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Request describes one generation run.
type Request struct {
	// City keys all persisted state.
	City string

	// Start is the shared starting point for every route in the catalog.
	Start poi.PointOfInterest

	// Direction optionally restricts turnaround candidates to a 90 degree
	// sector.
	Direction poi.Direction
}

// GenerationResult is the outcome of a full run. Skipped thresholds are an
// expected outcome in sparse areas, not an error.
type GenerationResult struct {
	Routes   []*route.Route
	Coverage map[route.TimeThreshold]int
	Skipped  []route.TimeThreshold
	States   map[route.TimeThreshold]ThresholdState
}

// SchedulerConfig holds the scheduler's collaborators.
type SchedulerConfig struct {
	POISource   poi.Source
	Synthesizer *route.Synthesizer
	Store       store.Repository
	Observer    Observer
	Logger      zerolog.Logger
	Tunables    Config
}

// Scheduler walks the threshold ladder in ascending minute order, filling
// each threshold's quota from priority-ordered turnaround candidates. State
// is mutated only on the scheduler's control goroutine; the synthesizer's
// concurrent leg fetch is the run's only parallelism.
type Scheduler struct {
	pois     poi.Source
	synth    *route.Synthesizer
	store    store.Repository
	observer Observer
	logger   zerolog.Logger
	cfg      Config
}

// NewScheduler creates a generation scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	return &Scheduler{
		pois:     cfg.POISource,
		synth:    cfg.Synthesizer,
		store:    cfg.Store,
		observer: observer,
		logger:   cfg.Logger,
		cfg:      cfg.Tunables.withDefaults(),
	}
}

// run carries the mutable state of one generation pass. The scheduler itself
// stays stateless across runs.
type run struct {
	req       Request
	retained  []*route.Route
	usedNames map[string]struct{}
	manual    map[string]struct{}
	snapshot  quality.Snapshot
	result    *GenerationResult
}

// Run executes a full generation pass. Per-candidate failures are absorbed
// into blacklist and counter state; only fatal collaborator failures and
// context cancellation return an error, and both leave partial progress
// persisted. The returned result is non-nil even on error.
func (s *Scheduler) Run(ctx context.Context, req Request) (*GenerationResult, error) {
	r, err := s.beginRun(ctx, req)
	if err != nil {
		return &GenerationResult{}, err
	}

	for _, threshold := range route.AllThresholds() {
		if err := ctx.Err(); err != nil {
			s.finishRun(ctx, r)
			return r.result, err
		}
		if err := s.runThreshold(ctx, r, threshold); err != nil {
			s.logger.Error().Err(err).
				Int("threshold_minutes", threshold.Minutes()).
				Msg("aborting generation run")
			s.finishRun(ctx, r)
			return r.result, err
		}
	}

	s.finishRun(ctx, r)
	return r.result, nil
}

func (s *Scheduler) beginRun(ctx context.Context, req Request) (*run, error) {
	retained, err := s.store.LoadRoutes(ctx, req.City)
	if err != nil {
		return nil, fmt.Errorf("load retained routes: %w", err)
	}

	manualNames, err := s.store.ManualBlacklist(ctx, req.City)
	if err != nil {
		return nil, fmt.Errorf("load manual blacklist: %w", err)
	}

	snapshot, err := s.store.ForbiddenGeometry(ctx, req.City)
	if err != nil {
		return nil, fmt.Errorf("load forbidden geometry: %w", err)
	}

	r := &run{
		req:       req,
		retained:  retained,
		usedNames: make(map[string]struct{}, len(retained)),
		manual:    nameSet(manualNames),
		snapshot:  snapshot,
		result: &GenerationResult{
			Coverage: make(map[route.TimeThreshold]int),
			States:   make(map[route.TimeThreshold]ThresholdState),
		},
	}
	for _, rt := range retained {
		r.usedNames[rt.Turnaround.Name] = struct{}{}
	}

	s.observer.Progress(fmt.Sprintf("starting generation for %s with %d retained routes", req.City, len(retained)))
	return r, nil
}

// runThreshold drives one threshold from NotStarted to a terminal state. A
// returned error is fatal for the whole run.
func (s *Scheduler) runThreshold(ctx context.Context, r *run, threshold route.TimeThreshold) error {
	logger := s.logger.With().Int("threshold_minutes", threshold.Minutes()).Logger()

	// Routes accepted by earlier thresholds may already cover this one.
	if s.satisfiedCount(r, threshold) >= s.cfg.RouteQuota {
		r.result.States[threshold] = StateSatisfied
		logger.Info().Msg("threshold already satisfied by retained routes")
		return nil
	}
	r.result.States[threshold] = StateSearching
	s.observer.Progress(fmt.Sprintf("searching %d minute threshold", threshold.Minutes()))

	candidates, err := s.fetchCandidates(ctx, r, threshold)
	if err != nil {
		if errors.Is(err, poi.ErrQuotaExceeded) || ctx.Err() != nil {
			return err
		}
		// Transient search failure exhausts the threshold; the next run
		// retries it naturally.
		logger.Warn().Err(err).Msg("poi search unavailable, threshold exhausted")
		s.settleThreshold(r, threshold)
		return nil
	}
	logger.Info().Int("candidates", len(candidates)).Msg("candidate pipeline complete")

	consecutiveOutOfRange := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.satisfiedCount(r, threshold) >= s.cfg.RouteQuota {
			break
		}
		if consecutiveOutOfRange >= s.cfg.MaxConsecutiveOutOfRange {
			logger.Warn().
				Int("consecutive_out_of_range", consecutiveOutOfRange).
				Msg("circuit breaker tripped, remaining candidates assumed incompatible")
			break
		}

		action, err := s.tryCandidate(ctx, r, threshold, candidate)
		if err != nil {
			return err
		}
		switch action {
		case breakerIncrement:
			consecutiveOutOfRange++
		case breakerReset:
			consecutiveOutOfRange = 0
		}
	}

	s.settleThreshold(r, threshold)
	return nil
}

// breakerAction tells runThreshold what a candidate attempt means for the
// consecutive-out-of-range counter. Only an in-range success resets it;
// transient and geometric failures leave it untouched.
type breakerAction int

const (
	breakerLeave breakerAction = iota
	breakerIncrement
	breakerReset
)

// tryCandidate synthesizes one candidate and folds the outcome into run
// state. A returned error is fatal.
func (s *Scheduler) tryCandidate(ctx context.Context, r *run, threshold route.TimeThreshold, candidate poi.PointOfInterest) (breakerAction, error) {
	outcome, err := s.synth.Synthesize(ctx, r.req.Start, candidate, threshold.TargetDistanceMiles(), r.snapshot)
	if err != nil {
		return breakerLeave, err
	}

	switch outcome.Kind {
	case route.OutcomeSuccess:
		if !threshold.IsValidDistance(outcome.Route.TotalMiles) {
			// The same turnaround may still work for another
			// threshold, so only this threshold blacklists it.
			if err := s.store.AddThresholdBlacklist(ctx, r.req.City, threshold, candidate.Name); err != nil {
				s.logger.Warn().Err(err).Str("name", candidate.Name).Msg("threshold blacklist write failed")
			}
			s.logger.Debug().
				Str("name", candidate.Name).
				Float64("total_miles", outcome.Route.TotalMiles).
				Msg("route out of range for threshold")
			return breakerIncrement, nil
		}
		s.acceptRoute(ctx, r, outcome.Route)
		return breakerReset, nil

	case route.OutcomeRoutingUnavailable:
		// Transient; the candidate stays eligible for the next run.
		s.logger.Debug().Str("name", candidate.Name).Msg("routing unavailable, skipping candidate")
		return breakerLeave, nil

	case route.OutcomeForbiddenPathUsed:
		if err := s.store.AddThresholdBlacklist(ctx, r.req.City, threshold, candidate.Name); err != nil {
			s.logger.Warn().Err(err).Str("name", candidate.Name).Msg("threshold blacklist write failed")
		}
		s.logger.Debug().Str("name", candidate.Name).Msg("candidate forces forbidden geometry")
		return breakerLeave, nil

	default: // OutcomeNoAcceptablePath
		s.logger.Debug().Str("name", candidate.Name).Msg("no acceptable path for candidate")
		return breakerLeave, nil
	}
}

// acceptRoute appends a route to the retained set and delivers the
// incremental events before the next candidate is evaluated, so progress
// survives interruption.
func (s *Scheduler) acceptRoute(ctx context.Context, r *run, rt *route.Route) {
	r.retained = append(r.retained, rt)
	r.usedNames[rt.Turnaround.Name] = struct{}{}

	s.observer.Progress(fmt.Sprintf("accepted %s (%.2f mi)", rt.Name, rt.TotalMiles))
	s.observer.RouteGenerated(rt)
	s.observer.PersistRequested(r.retained)

	if err := s.store.SaveRoutes(ctx, r.req.City, r.retained); err != nil {
		// A failed incremental save loses at most this acceptance; the
		// final save and the next acceptance both retry the full set.
		s.logger.Warn().Err(err).Str("route_id", rt.ID).Msg("incremental save failed")
	}

	s.logger.Info().
		Str("route_id", rt.ID).
		Str("turnaround", rt.Turnaround.Name).
		Float64("total_miles", rt.TotalMiles).
		Msg("route accepted")
}

func (s *Scheduler) fetchCandidates(ctx context.Context, r *run, threshold route.TimeThreshold) ([]poi.PointOfInterest, error) {
	thresholdNames, err := s.store.ThresholdBlacklist(ctx, r.req.City, threshold)
	if err != nil {
		return nil, fmt.Errorf("load threshold blacklist: %w", err)
	}

	raw, err := s.pois.Search(ctx, r.req.Start.Coord, threshold.SearchRadiusMeters())
	if err != nil {
		return nil, err
	}

	return poi.Filter(raw, poi.FilterInput{
		Start:                     r.req.Start.Coord,
		MinDistanceMiles:          threshold.MinDistanceMiles(),
		MaxDistanceMiles:          threshold.MaxDistanceMiles(),
		Direction:                 r.req.Direction,
		UsedNames:                 r.usedNames,
		BlacklistedNames:          r.manual,
		ThresholdBlacklistedNames: nameSet(thresholdNames),
	}, s.logger), nil
}

// settleThreshold records the terminal state and coverage for a threshold.
func (s *Scheduler) settleThreshold(r *run, threshold route.TimeThreshold) {
	count := s.satisfiedCount(r, threshold)
	if count >= s.cfg.RouteQuota {
		r.result.States[threshold] = StateSatisfied
	} else {
		r.result.States[threshold] = StateExhausted
	}
	if count == 0 {
		r.result.Skipped = append(r.result.Skipped, threshold)
		s.observer.Progress(fmt.Sprintf("no routes for %d minute threshold, skipped", threshold.Minutes()))
	}
}

func (s *Scheduler) satisfiedCount(r *run, threshold route.TimeThreshold) int {
	count := 0
	for _, rt := range r.retained {
		if rt.SatisfiesThreshold(threshold) {
			count++
		}
	}
	return count
}

// finishRun recomputes derived route state, builds the coverage map, and
// persists the final retained set. Threshold boundaries are fixed, so the
// recompute is deterministic.
func (s *Scheduler) finishRun(ctx context.Context, r *run) {
	for _, rt := range r.retained {
		rt.RecomputeSessionTimes()
	}

	for _, threshold := range route.AllThresholds() {
		r.result.Coverage[threshold] = s.satisfiedCount(r, threshold)
	}
	r.result.Routes = r.retained

	// The final save must land even when the run was canceled or aborted,
	// so partial progress survives.
	if err := s.store.SaveRoutes(context.WithoutCancel(ctx), r.req.City, r.retained); err != nil {
		s.logger.Error().Err(err).Msg("final save failed")
	}

	s.observer.Progress(fmt.Sprintf("generation finished with %d routes, %d thresholds skipped",
		len(r.retained), len(r.result.Skipped)))
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
