package routing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Providers are the routing backends in priority order. The first is
	// preferred; later entries are fallbacks.
	Providers []Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// MaxAlternatives is the number of path alternatives requested per leg
	// (default: 3).
	MaxAlternatives int

	// RateLimitWaitCap bounds how long the service sleeps on a provider's
	// reported rate-limit reset before retrying (default: 30 seconds).
	RateLimitWaitCap time.Duration
}

// Service fans routing requests across backends. Per-request retry with
// backoff happens inside each provider's HTTP client; this layer handles the
// broader ladder: rate-limit wait and retry, then an alternate backend, then
// a degraded single-alternative fallback.
type Service struct {
	providers        []Provider
	logger           zerolog.Logger
	maxAlternatives  int
	rateLimitWaitCap time.Duration
}

// NewService creates a routing service over the given providers.
func NewService(cfg ServiceConfig) *Service {
	maxAlts := cfg.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 3
	}

	waitCap := cfg.RateLimitWaitCap
	if waitCap == 0 {
		waitCap = 30 * time.Second
	}

	return &Service{
		providers:        cfg.Providers,
		logger:           cfg.Logger,
		maxAlternatives:  maxAlts,
		rateLimitWaitCap: waitCap,
	}
}

// PathAlternatives returns candidate paths from origin to destination. The
// result may be empty when the provider genuinely finds no route.
func (s *Service) PathAlternatives(ctx context.Context, origin, destination geo.Coordinate) ([]PathAlternative, error) {
	if !origin.Valid() || !destination.Valid() {
		return nil, &Error{
			Code:    "INVALID_COORDINATES",
			Message: "coordinates out of range",
			Err:     ErrInvalidCoordinates,
		}
	}

	if len(s.providers) == 0 {
		return nil, &Error{
			Code:    "NO_PROVIDERS",
			Message: "no routing providers configured",
			Err:     ErrProviderUnavailable,
		}
	}

	req := DirectionsRequest{
		Origin:          origin,
		Destination:     destination,
		MaxAlternatives: s.maxAlternatives,
	}

	var lastErr error
	for _, p := range s.providers {
		alts, err := s.tryProvider(ctx, p, req)
		if err == nil {
			return alts, nil
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		s.logger.Warn().Err(err).
			Str("provider", p.Name()).
			Msg("routing provider failed, trying next backend")
		lastErr = err
	}

	// Degraded fallback: ask the preferred backend for a single path. A
	// lone alternative still lets the synthesizer produce a route, just
	// without pairing choice.
	req.MaxAlternatives = 1
	alts, err := s.providers[0].Directions(ctx, req)
	if err == nil {
		s.logger.Warn().
			Str("provider", s.providers[0].Name()).
			Msg("served degraded single-path fallback")
		return alts, nil
	}

	return nil, lastErr
}

// tryProvider issues one request, waiting out a reported rate-limit reset and
// retrying once before giving up on the backend.
func (s *Service) tryProvider(ctx context.Context, p Provider, req DirectionsRequest) ([]PathAlternative, error) {
	alts, err := p.Directions(ctx, req)
	if err == nil {
		return alts, nil
	}

	var provErr *Error
	if !errors.As(err, &provErr) || !errors.Is(err, ErrRateLimitExceeded) {
		return nil, err
	}

	wait := provErr.RetryAfter
	if wait <= 0 || wait > s.rateLimitWaitCap {
		wait = s.rateLimitWaitCap
	}

	s.logger.Info().
		Str("provider", p.Name()).
		Dur("wait", wait).
		Msg("rate limited, waiting for reported reset")

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	return p.Directions(ctx, req)
}
