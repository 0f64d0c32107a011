// Package overpass provides a POI source backed by the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
	"github.com/mister-10k/laps-routes-generator/internal/provider/resilience"
)

const (
	// ProviderName identifies this POI source.
	ProviderName = "overpass"

	// DefaultBaseURL is the public Overpass API endpoint.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultTimeout is the default request timeout. Overpass queries are
	// slower than routing calls.
	DefaultTimeout = 30 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// BaseURL is the API endpoint (optional, defaults to the public
	// instance).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 30s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client queries Overpass for named turnaround candidates: parks, tourist
// landmarks, and public squares around a center point.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
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
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Search returns named POIs within radiusMeters of center.
func (c *Client) Search(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]poi.PointOfInterest, error) {
	form := url.Values{"data": {buildQuery(center, radiusMeters)}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug().
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Float64("radius_m", radiusMeters).
		Msg("querying Overpass for candidates")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("overpass request: %w", poi.ErrSearchUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := c.handleErrorResponse(resp.StatusCode)
		c.recordFailure(err)
		return nil, err
	}

	var overpassResp overpassResponse
	if err := json.Unmarshal(respBody, &overpassResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	pois := make([]poi.PointOfInterest, 0, len(overpassResp.Elements))
	for _, el := range overpassResp.Elements {
		name := el.Tags["name"]
		if name == "" {
			// Unnamed elements cannot participate in the name-keyed
			// dedupe and blacklist machinery.
			continue
		}

		category, priority := classify(el.Tags)
		pois = append(pois, poi.PointOfInterest{
			ID:       fmt.Sprintf("%s/%d", el.Type, el.ID),
			Name:     name,
			Coord:    el.coordinate(),
			Category: category,
			Priority: priority,
		})
	}

	c.recordSuccess()
	c.logger.Debug().Int("pois", len(pois)).Msg("received candidates from Overpass")

	return pois, nil
}

// buildQuery assembles the Overpass QL for turnaround-worthy places.
func buildQuery(center geo.Coordinate, radiusMeters float64) string {
	around := fmt.Sprintf("around:%.0f,%.6f,%.6f", radiusMeters, center.Lat, center.Lon)
	return fmt.Sprintf(`[out:json][timeout:25];
(
  nwr["tourism"~"attraction|viewpoint|artwork|museum"](%[1]s);
  nwr["leisure"~"park|garden|nature_reserve"](%[1]s);
  nwr["amenity"~"marketplace|fountain|place_of_worship"](%[1]s);
);
out center;`, around)
}

// classify maps OSM tags to a category and priority tier. Tourist landmarks
// come first, green space second, everything else last.
func classify(tags map[string]string) (string, int) {
	if v := tags["tourism"]; v != "" {
		return "tourism/" + v, poi.PriorityLandmark
	}
	if v := tags["leisure"]; v != "" {
		return "leisure/" + v, poi.PriorityLandmark + 1
	}
	if v := tags["amenity"]; v != "" {
		return "amenity/" + v, poi.DefaultStartPriority
	}
	return "other", poi.DefaultStartPriority
}

// handleErrorResponse maps Overpass error statuses to domain errors.
func (c *Client) handleErrorResponse(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden ||
		statusCode == http.StatusPaymentRequired:
		return fmt.Errorf("overpass status %d: %w", statusCode, poi.ErrQuotaExceeded)
	default:
		// 429 and 5xx are busy-server conditions on the public instance.
		return fmt.Errorf("overpass status %d: %w", statusCode, poi.ErrSearchUnavailable)
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

// overpassResponse is the Overpass interpreter response envelope.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// overpassElement is a single OSM element. Ways and relations carry their
// location in the center field.
type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (e overpassElement) coordinate() geo.Coordinate {
	if e.Center != nil {
		return geo.Coordinate{Lat: e.Center.Lat, Lon: e.Center.Lon}
	}
	return geo.Coordinate{Lat: e.Lat, Lon: e.Lon}
}
