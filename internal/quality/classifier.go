package quality

import (
	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// Highway heuristic thresholds. A city grid contains long straight streets,
// so both the straightness ratio and a minimum length must hold before a
// path is treated as a high-speed corridor.
const (
	// endpointStraightnessRatio flags a path whose endpoints are nearly as
	// far apart as the path is long.
	endpointStraightnessRatio = 0.98

	// endpointMinLengthMeters is the minimum path length for the endpoint
	// straightness check to apply.
	endpointMinLengthMeters = 2000

	// windowStraightnessRatio flags a contiguous sub-run that is almost
	// perfectly straight.
	windowStraightnessRatio = 0.99

	// windowMinLengthMeters is the minimum path length of a straight sub-run
	// before it counts as a corridor.
	windowMinLengthMeters = 5000

	windowMinPoints = 10
	windowMaxPoints = 50
	windowStep      = 5
)

// Forbidden path proximity thresholds. A route briefly crossing a forbidden
// corridor (an underpass) is acceptable; traveling along it is not. Both the
// consecutive point count and the accumulated in-zone distance must be met.
const (
	forbiddenProximityMeters  = 25
	forbiddenMinRunPoints     = 3
	forbiddenMinRunDistMeters = 50
)

// Config selects which rejection checks run. The three mechanisms evolved
// independently; callers decide which to enable.
type Config struct {
	CheckHighway        bool
	CheckForbiddenZones bool
	CheckForbiddenPaths bool
}

// DefaultConfig enables all checks.
func DefaultConfig() Config {
	return Config{
		CheckHighway:        true,
		CheckForbiddenZones: true,
		CheckForbiddenPaths: true,
	}
}

// Classifier evaluates candidate route geometry against the configured checks.
type Classifier struct {
	cfg    Config
	logger zerolog.Logger
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg Config, logger zerolog.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// RejectReason describes why a path was rejected.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectHighway       RejectReason = "highway_like"
	RejectForbiddenZone RejectReason = "forbidden_zone"
	RejectForbiddenPath RejectReason = "forbidden_path"
)

// Evaluate runs the enabled checks against a path and returns the first
// rejection reason, or RejectNone if the path is acceptable.
func (c *Classifier) Evaluate(path []geo.Coordinate, snapshot Snapshot) RejectReason {
	if c.cfg.CheckHighway && IsHighwayLike(path) {
		c.logger.Debug().Int("points", len(path)).Msg("path rejected as highway-like")
		return RejectHighway
	}

	if c.cfg.CheckForbiddenZones {
		for _, zone := range snapshot.Zones {
			if PathEntersZone(path, zone) {
				c.logger.Debug().Str("zone", zone.Name).Msg("path rejected for forbidden zone")
				return RejectForbiddenZone
			}
		}
	}

	if c.cfg.CheckForbiddenPaths {
		for _, fp := range snapshot.Paths {
			if fp.ContainsSegment(path) {
				c.logger.Debug().Str("forbidden_path", fp.Name).Msg("path rejected for traveling along forbidden path")
				return RejectForbiddenPath
			}
		}
	}

	return RejectNone
}

// IsHighwayLike reports whether a path resembles an uninterrupted high-speed
// corridor. Flags when the whole path is nearly straight and longer than
// 2 km, or when it contains a nearly straight contiguous sub-run of at least
// 5 km. Straightness alone is not enough: long straight city streets with
// short segments are common and must pass.
func IsHighwayLike(path []geo.Coordinate) bool {
	if len(path) < 2 {
		return false
	}

	length := geo.PathLength(path)
	if length > endpointMinLengthMeters {
		straight := geo.Haversine(path[0], path[len(path)-1])
		if straight/length > endpointStraightnessRatio {
			return true
		}
	}

	return longestStraightRun(path) >= windowMinLengthMeters
}

// longestStraightRun slides windows of 10 to 50 points (stepping by 5) across
// the path and returns the path-length of the longest window whose
// straightness ratio exceeds windowStraightnessRatio.
func longestStraightRun(path []geo.Coordinate) float64 {
	var longest float64

	for size := windowMinPoints; size <= windowMaxPoints; size += windowStep {
		if size > len(path) {
			break
		}
		for start := 0; start+size <= len(path); start++ {
			window := path[start : start+size]
			winLen := geo.PathLength(window)
			if winLen <= 0 || winLen <= longest {
				continue
			}
			straight := geo.Haversine(window[0], window[len(window)-1])
			if straight/winLen > windowStraightnessRatio {
				longest = winLen
			}
		}
	}

	return longest
}

// PathEntersZone reports whether any point of the path falls inside the zone.
// Zones are few and static, so point-in-box testing suffices.
func PathEntersZone(path []geo.Coordinate, zone ForbiddenZone) bool {
	for _, p := range path {
		if zone.Contains(p) {
			return true
		}
	}
	return false
}

// ContainsSegment reports whether the route travels along the forbidden path,
// as opposed to merely crossing it. It walks the route accumulating runs of
// consecutive points within 25 m of the forbidden polyline; the route is
// rejected the moment a run reaches 3 points and 50 m of in-zone distance.
// Leaving proximity resets the run.
func (f ForbiddenPath) ContainsSegment(route []geo.Coordinate) bool {
	if len(f.Points) == 0 || len(route) == 0 {
		return false
	}

	runPoints := 0
	runDist := 0.0
	var prev geo.Coordinate

	for _, p := range route {
		if f.distanceTo(p) <= forbiddenProximityMeters {
			if runPoints > 0 {
				runDist += geo.Haversine(prev, p)
			}
			runPoints++
			prev = p

			if runPoints >= forbiddenMinRunPoints && runDist >= forbiddenMinRunDistMeters {
				return true
			}
			continue
		}

		runPoints = 0
		runDist = 0
	}

	return false
}

// distanceTo returns the distance from p to the forbidden polyline. Sparse
// polylines (a single point) degrade to point distance.
func (f ForbiddenPath) distanceTo(p geo.Coordinate) float64 {
	return geo.PointToPath(p, f.Points)
}
