// Package generator drives the per-threshold coverage loop: candidate
// filtering, route synthesis, blacklist feedback, and incremental persistence.
package generator

// Tunables for a generation run. The circuit-breaker count and the
// regeneration overlap limit are operating constants with no derivation
// beyond field experience, so they live in config rather than as fixed law.
type Config struct {
	// RouteQuota is the number of retained routes that satisfies a
	// threshold (default: 10).
	RouteQuota int

	// MaxConsecutiveOutOfRange aborts a threshold's search early once this
	// many candidates in a row land outside the valid distance range
	// (default: 20). Remaining candidates are assumed geometrically
	// incompatible with the distance band.
	MaxConsecutiveOutOfRange int

	// RegenOverlapLimit is the maximum overlap a regenerated path may have
	// against any currently retained path (default: 0.7).
	RegenOverlapLimit float64

	// RegenCandidateLimit caps how many fresh turnaround candidates a
	// regeneration attempt tries (default: 10).
	RegenCandidateLimit int

	// RegenStartExclusionMeters excludes turnaround candidates this close
	// to the start during regeneration (default: 500).
	RegenStartExclusionMeters float64
}

// DefaultConfig returns the standard generation tunables.
func DefaultConfig() Config {
	return Config{
		RouteQuota:                10,
		MaxConsecutiveOutOfRange:  20,
		RegenOverlapLimit:         0.7,
		RegenCandidateLimit:       10,
		RegenStartExclusionMeters: 500,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RouteQuota <= 0 {
		c.RouteQuota = def.RouteQuota
	}
	if c.MaxConsecutiveOutOfRange <= 0 {
		c.MaxConsecutiveOutOfRange = def.MaxConsecutiveOutOfRange
	}
	if c.RegenOverlapLimit <= 0 {
		c.RegenOverlapLimit = def.RegenOverlapLimit
	}
	if c.RegenCandidateLimit <= 0 {
		c.RegenCandidateLimit = def.RegenCandidateLimit
	}
	if c.RegenStartExclusionMeters <= 0 {
		c.RegenStartExclusionMeters = def.RegenStartExclusionMeters
	}
	return c
}
