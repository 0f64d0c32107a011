// Package routing defines the routing collaborator contract: given two
// coordinates, a provider returns candidate path alternatives with geometry
// and length. The engine never computes shortest paths itself.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the provider is down, unreachable, or
	// the circuit breaker is open. Transient; never blacklists a candidate.
	ErrProviderUnavailable = errors.New("routing provider unavailable")

	// ErrNoRouteFound indicates no path exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")

	// ErrRateLimitExceeded indicates the provider's quota window is
	// exhausted. Transient; the service waits for the reported reset.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAuthFailure indicates an authorization or billing failure. Fatal
	// for the whole generation run.
	ErrAuthFailure = errors.New("routing provider authorization failure")

	// ErrInvalidCoordinates indicates out-of-range coordinates.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// PathAlternative is one candidate path between two coordinates.
type PathAlternative struct {
	// Geometry is the ordered coordinate sequence of the path.
	Geometry []geo.Coordinate

	// DistanceMeters is the path length as reported by the provider. Route
	// totals sum these reported lengths; they are never recomputed from
	// coordinates.
	DistanceMeters float64
}

// DirectionsRequest asks a provider for paths between two points.
type DirectionsRequest struct {
	Origin          geo.Coordinate
	Destination     geo.Coordinate
	MaxAlternatives int
}

// Provider is a single routing backend.
type Provider interface {
	// Directions returns zero or more path alternatives. May fail with
	// transient, rate-limit, or fatal errors (see the sentinel errors).
	Directions(ctx context.Context, req DirectionsRequest) ([]PathAlternative, error)

	// Name identifies the provider for logging and health tracking.
	Name() string
}

// Error carries provider error detail.
type Error struct {
	Provider string
	Code     string
	Message  string

	// RetryAfter is the provider-reported rate-limit reset, if known.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the request can be retried on this or another
// backend.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// IsFatal reports whether the error dooms the whole generation run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}
