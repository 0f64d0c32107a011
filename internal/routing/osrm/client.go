// Package osrm provides a client for the OSRM route service API.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
	"github.com/mister-10k/laps-routes-generator/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultProfile is the OSRM routing profile for walking routes.
	DefaultProfile = "foot"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the demo server).
	BaseURL string

	// Profile is the OSRM routing profile (optional, defaults to foot).
	Profile string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM API client.
type Client struct {
	baseURL    string
	profile    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		resilient := resilience.NewClient(clientCfg)
		if cfg.Registry != nil {
			cfg.Registry.Register(ProviderName, resilient)
		}
		httpClient = resilient
	}

	return &Client{
		baseURL:    baseURL,
		profile:    profile,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Directions retrieves path alternatives between two points.
func (c *Client) Directions(ctx context.Context, req routing.DirectionsRequest) ([]routing.PathAlternative, error) {
	maxAlts := req.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 3
	}

	// OSRM uses {lon},{lat} coordinate order.
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?alternatives=%d&overview=full&geometries=polyline",
		c.baseURL, c.profile,
		req.Origin.Lon, req.Origin.Lat,
		req.Destination.Lon, req.Destination.Lat,
		maxAlts,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Int("max_alternatives", maxAlts).
		Msg("requesting directions from OSRM")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(err)
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := c.handleErrorResponse(resp.StatusCode, resp.Header, respBody)
		c.recordFailure(err)
		return nil, err
	}

	var osrmResp osrmResponse
	if err := json.Unmarshal(respBody, &osrmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if osrmResp.Code != "Ok" {
		if osrmResp.Code == "NoRoute" {
			// Zero alternatives is a valid answer; the synthesizer maps it
			// to a retryable failure.
			return nil, nil
		}
		err := &routing.Error{
			Provider: ProviderName,
			Code:     osrmResp.Code,
			Message:  osrmResp.Message,
			Err:      routing.ErrProviderUnavailable,
		}
		c.recordFailure(err)
		return nil, err
	}

	alts := make([]routing.PathAlternative, 0, len(osrmResp.Routes))
	for _, r := range osrmResp.Routes {
		alts = append(alts, routing.PathAlternative{
			Geometry:       geo.DecodePolyline(r.Geometry),
			DistanceMeters: r.Distance,
		})
	}

	c.recordSuccess()
	c.logger.Debug().Int("alternatives", len(alts)).Msg("received directions from OSRM")

	return alts, nil
}

// handleErrorResponse maps OSRM error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, header http.Header, body []byte) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if raw := header.Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &routing.Error{
			Provider:   ProviderName,
			Code:       "RATE_LIMIT",
			Message:    "API rate limit exceeded",
			RetryAfter: retryAfter,
			Err:        routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  "routing provider rejected credentials",
			Err:      routing.ErrAuthFailure,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d: %s", statusCode, string(body)),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err)
	}
}

// osrmResponse is the OSRM route service response envelope.
type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []osrmRoute `json:"routes"`
}

// osrmRoute is a single route in an OSRM response.
type osrmRoute struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
