package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
)

// Regeneration errors.
var (
	// ErrNoAlternative means no sufficiently different path or turnaround
	// could be found. The old route stays retained.
	ErrNoAlternative = errors.New("no alternative route found")

	// ErrNoContainingThreshold means the old route's distance fits no
	// threshold's valid range, so there is nothing to regenerate against.
	ErrNoContainingThreshold = errors.New("no threshold contains the route distance")
)

// RegeneratorConfig holds the regenerator's collaborators.
type RegeneratorConfig struct {
	Router      route.PathSource
	POISource   poi.Source
	Synthesizer *route.Synthesizer
	Classifier  *quality.Classifier
	Logger      zerolog.Logger
	Tunables    Config
}

// Regenerator replaces a single retained route the user dislikes: either a
// different path to the same turnaround, or a different turnaround for the
// same session length.
type Regenerator struct {
	router     route.PathSource
	pois       poi.Source
	synth      *route.Synthesizer
	classifier *quality.Classifier
	logger     zerolog.Logger
	cfg        Config
}

// NewRegenerator creates a regeneration engine.
func NewRegenerator(cfg RegeneratorConfig) *Regenerator {
	return &Regenerator{
		router:     cfg.Router,
		pois:       cfg.POISource,
		synth:      cfg.Synthesizer,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		cfg:        cfg.Tunables.withDefaults(),
	}
}

// AlternatePath builds a new route to the same turnaround whose legs differ
// from every currently retained path. "Different enough" is a satisficing
// criterion, so the first surviving pairing wins rather than the
// least-overlapping one.
func (g *Regenerator) AlternatePath(ctx context.Context, old *route.Route, retained []*route.Route, snapshot quality.Snapshot) (*route.Route, error) {
	existing := retainedPaths(retained)

	outbound, err := g.router.PathAlternatives(ctx, old.Start.Coord, old.Turnaround.Coord)
	if err != nil {
		return nil, fmt.Errorf("outbound alternatives: %w", err)
	}
	returning, err := g.router.PathAlternatives(ctx, old.Turnaround.Coord, old.Start.Coord)
	if err != nil {
		return nil, fmt.Errorf("return alternatives: %w", err)
	}

	for _, out := range outbound {
		if g.classifier.Evaluate(out.Geometry, snapshot) != quality.RejectNone {
			continue
		}
		if g.tooSimilar(out.Geometry, existing) {
			continue
		}
		for _, ret := range returning {
			if g.classifier.Evaluate(ret.Geometry, snapshot) != quality.RejectNone {
				continue
			}
			if g.tooSimilar(ret.Geometry, existing) {
				continue
			}

			rt := g.buildRoute(old.Start, old.Turnaround, out, ret)
			g.logger.Info().
				Str("route_id", rt.ID).
				Str("replaces", old.ID).
				Float64("total_miles", rt.TotalMiles).
				Msg("regenerated alternate path")
			return rt, nil
		}
	}

	return nil, ErrNoAlternative
}

// AlternateTurnaround finds a different turnaround yielding a route in the
// same session-length range as the old one. The old turnaround and anything
// on top of the start are excluded; up to RegenCandidateLimit shuffled
// candidates are attempted.
func (g *Regenerator) AlternateTurnaround(ctx context.Context, old *route.Route, usedNames, manual, thresholdBlacklisted map[string]struct{}, snapshot quality.Snapshot) (*route.Route, error) {
	threshold, ok := containingThreshold(old.TotalMiles)
	if !ok {
		return nil, ErrNoContainingThreshold
	}

	raw, err := g.pois.Search(ctx, old.Start.Coord, threshold.SearchRadiusMeters())
	if err != nil {
		return nil, fmt.Errorf("poi search: %w", err)
	}

	candidates := poi.Filter(raw, poi.FilterInput{
		Start:                     old.Start.Coord,
		MinDistanceMiles:          threshold.MinDistanceMiles(),
		MaxDistanceMiles:          threshold.MaxDistanceMiles(),
		UsedNames:                 usedNames,
		BlacklistedNames:          manual,
		ThresholdBlacklistedNames: thresholdBlacklisted,
	}, g.logger)

	tried := 0
	for _, candidate := range candidates {
		if tried >= g.cfg.RegenCandidateLimit {
			break
		}
		if candidate.Name == old.Turnaround.Name {
			continue
		}
		if geo.Haversine(old.Start.Coord, candidate.Coord) < g.cfg.RegenStartExclusionMeters {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried++

		outcome, err := g.synth.Synthesize(ctx, old.Start, candidate, threshold.TargetDistanceMiles(), snapshot)
		if err != nil {
			return nil, err
		}
		if outcome.Kind != route.OutcomeSuccess {
			continue
		}
		if !threshold.IsValidDistance(outcome.Route.TotalMiles) {
			continue
		}

		g.logger.Info().
			Str("route_id", outcome.Route.ID).
			Str("replaces", old.ID).
			Str("turnaround", candidate.Name).
			Msg("regenerated with new turnaround")
		return outcome.Route, nil
	}

	return nil, ErrNoAlternative
}

func (g *Regenerator) tooSimilar(path []geo.Coordinate, existing [][]geo.Coordinate) bool {
	for _, other := range existing {
		if geo.OverlapFraction(path, other, geo.DefaultOverlapProximityMeters) > g.cfg.RegenOverlapLimit {
			return true
		}
	}
	return false
}

func (g *Regenerator) buildRoute(start, turnaround poi.PointOfInterest, out, ret routing.PathAlternative) *route.Route {
	totalMiles := (out.DistanceMeters + ret.DistanceMeters) / geo.MetersPerMile

	rt := &route.Route{
		ID:           "rt_" + uuid.New().String()[:22],
		Name:         turnaround.Name,
		Start:        start,
		Turnaround:   turnaround,
		TotalMiles:   totalMiles,
		DistanceBand: route.NearestDistanceBand(totalMiles),
		OutboundPath: out.Geometry,
		ReturnPath:   ret.Geometry,
	}
	rt.RecomputeSessionTimes()
	return rt
}

// retainedPaths collects every leg polyline from the retained set.
func retainedPaths(retained []*route.Route) [][]geo.Coordinate {
	paths := make([][]geo.Coordinate, 0, 2*len(retained))
	for _, rt := range retained {
		paths = append(paths, rt.OutboundPath, rt.ReturnPath)
	}
	return paths
}

// containingThreshold returns the first threshold whose valid range contains
// the distance.
func containingThreshold(miles float64) (route.TimeThreshold, bool) {
	for _, threshold := range route.AllThresholds() {
		if threshold.IsValidDistance(miles) {
			return threshold, true
		}
	}
	return 0, false
}
