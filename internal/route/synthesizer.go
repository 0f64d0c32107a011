package route

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
)

// PathSource supplies candidate paths between two coordinates. Satisfied by
// *routing.Service.
type PathSource interface {
	PathAlternatives(ctx context.Context, origin, destination geo.Coordinate) ([]routing.PathAlternative, error)
}

// OutcomeKind classifies a synthesis attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means a Route was produced.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeRoutingUnavailable means the routing collaborator failed or
	// returned no alternatives for a leg. Transient; the candidate is never
	// blacklisted for it.
	OutcomeRoutingUnavailable

	// OutcomeForbiddenPathUsed means every pairing was rejected and at
	// least one rejection was for forbidden geometry. Deterministic: the
	// candidate is blacklisted for the active threshold.
	OutcomeForbiddenPathUsed

	// OutcomeNoAcceptablePath means every pairing was rejected on
	// highway-likeness alone.
	OutcomeNoAcceptablePath
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRoutingUnavailable:
		return "routing_unavailable"
	case OutcomeForbiddenPathUsed:
		return "forbidden_path_used"
	case OutcomeNoAcceptablePath:
		return "no_acceptable_path"
	default:
		return "unknown"
	}
}

// Outcome is the result of one synthesis attempt. Whether a successful
// Route's distance fits the active threshold is the caller's check, since
// the same Route may be valid for a different threshold.
type Outcome struct {
	Kind  OutcomeKind
	Route *Route
	Err   error
}

// SynthesizerConfig holds the synthesizer's collaborators.
type SynthesizerConfig struct {
	Router     PathSource
	Classifier *quality.Classifier
	Logger     zerolog.Logger

	// OverlapProximityMeters is the point-match distance for the overlap
	// measure (default: 20).
	OverlapProximityMeters float64
}

// Synthesizer builds an out-and-back Route from a turnaround candidate by
// picking the outbound/return pairing with the least overlap that survives
// the quality classifier.
type Synthesizer struct {
	router           PathSource
	classifier       *quality.Classifier
	logger           zerolog.Logger
	overlapProximity float64
}

// NewSynthesizer creates a route synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	proximity := cfg.OverlapProximityMeters
	if proximity <= 0 {
		proximity = geo.DefaultOverlapProximityMeters
	}

	return &Synthesizer{
		router:           cfg.Router,
		classifier:       cfg.Classifier,
		logger:           cfg.Logger,
		overlapProximity: proximity,
	}
}

// Synthesize attempts to build a route from start to turnaround and back.
// targetMiles is informational only; it never rejects a pairing. The error
// return carries fatal collaborator failures and context cancellation;
// everything else is expressed in the Outcome.
func (s *Synthesizer) Synthesize(ctx context.Context, start, turnaround poi.PointOfInterest, targetMiles float64, snapshot quality.Snapshot) (Outcome, error) {
	outbound, returning, err := s.fetchLegs(ctx, start.Coord, turnaround.Coord)
	if err != nil {
		if routing.IsFatal(err) || ctx.Err() != nil {
			return Outcome{}, err
		}
		s.logger.Debug().Err(err).
			Str("turnaround", turnaround.Name).
			Msg("routing unavailable for candidate")
		return Outcome{Kind: OutcomeRoutingUnavailable, Err: err}, nil
	}

	if len(outbound) == 0 || len(returning) == 0 {
		// Could be a transient provider hiccup rather than true
		// unreachability, so the candidate stays eligible.
		return Outcome{Kind: OutcomeRoutingUnavailable, Err: routing.ErrNoRouteFound}, nil
	}

	best, sawForbidden := s.selectPairing(outbound, returning, snapshot)
	if best == nil {
		if sawForbidden {
			return Outcome{Kind: OutcomeForbiddenPathUsed}, nil
		}
		return Outcome{Kind: OutcomeNoAcceptablePath}, nil
	}

	totalMiles := (best.out.DistanceMeters + best.ret.DistanceMeters) / geo.MetersPerMile

	rt := &Route{
		ID:           "rt_" + uuid.New().String()[:22],
		Name:         turnaround.Name,
		Start:        start,
		Turnaround:   turnaround,
		TotalMiles:   totalMiles,
		DistanceBand: NearestDistanceBand(totalMiles),
		OutboundPath: best.out.Geometry,
		ReturnPath:   best.ret.Geometry,
	}
	rt.RecomputeSessionTimes()

	s.logger.Debug().
		Str("route_id", rt.ID).
		Str("turnaround", turnaround.Name).
		Float64("total_miles", totalMiles).
		Float64("target_miles", targetMiles).
		Float64("overlap", best.overlap).
		Msg("synthesized route")

	return Outcome{Kind: OutcomeSuccess, Route: rt}, nil
}

// fetchLegs requests both legs concurrently and awaits them jointly. This is
// the engine's only point of true parallelism.
func (s *Synthesizer) fetchLegs(ctx context.Context, from, to geo.Coordinate) (outbound, returning []routing.PathAlternative, err error) {
	var (
		wg     sync.WaitGroup
		outErr error
		retErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outbound, outErr = s.router.PathAlternatives(ctx, from, to)
	}()
	go func() {
		defer wg.Done()
		returning, retErr = s.router.PathAlternatives(ctx, to, from)
	}()
	wg.Wait()

	if outErr != nil {
		return nil, nil, outErr
	}
	if retErr != nil {
		return nil, nil, retErr
	}
	return outbound, returning, nil
}

type pairing struct {
	out     routing.PathAlternative
	ret     routing.PathAlternative
	overlap float64
}

// selectPairing evaluates the full cross-product of leg alternatives and
// returns the surviving pairing with minimum overlap (ties keep the first
// encountered), plus whether any rejection was for forbidden geometry.
func (s *Synthesizer) selectPairing(outbound, returning []routing.PathAlternative, snapshot quality.Snapshot) (*pairing, bool) {
	var best *pairing
	sawForbidden := false

	reject := func(path []geo.Coordinate) bool {
		reason := s.classifier.Evaluate(path, snapshot)
		if reason == quality.RejectForbiddenZone || reason == quality.RejectForbiddenPath {
			sawForbidden = true
		}
		return reason != quality.RejectNone
	}

	for _, out := range outbound {
		if reject(out.Geometry) {
			continue
		}
		for _, ret := range returning {
			if reject(ret.Geometry) {
				continue
			}

			ov := geo.OverlapFraction(out.Geometry, ret.Geometry, s.overlapProximity)
			if best == nil || ov < best.overlap {
				best = &pairing{out: out, ret: ret, overlap: ov}
			}
		}
	}

	return best, sawForbidden
}
