package overpass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
)

// mockHTTPClient wraps the test server's client to satisfy HTTPDoer.
type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})
}

var testCenter = geo.Coordinate{Lat: 40.7420, Lon: -74.0282}

func TestClient_Search_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		query := r.PostFormValue("data")
		if !strings.Contains(query, "around:1408") {
			t.Errorf("expected radius in query, got %q", query)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"elements":[
			{"type":"node","id":101,"lat":40.7445,"lon":-74.0250,"tags":{"name":"Castle Point Lookout","tourism":"viewpoint"}},
			{"type":"way","id":202,"center":{"lat":40.7396,"lon":-74.0310},"tags":{"name":"Pier A Park","leisure":"park"}},
			{"type":"node","id":303,"lat":40.7410,"lon":-74.0290,"tags":{"leisure":"park"}}
		]}`))
	}))
	defer server.Close()

	pois, err := newTestClient(server).Search(context.Background(), testCenter, 1408)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The unnamed park is dropped.
	if len(pois) != 2 {
		t.Fatalf("expected 2 POIs, got %d", len(pois))
	}
	if pois[0].Name != "Castle Point Lookout" {
		t.Errorf("unexpected name %q", pois[0].Name)
	}
	if pois[0].Priority != poi.PriorityLandmark {
		t.Errorf("tourism POI should be a landmark, got tier %d", pois[0].Priority)
	}
	if pois[1].ID != "way/202" {
		t.Errorf("unexpected ID %q", pois[1].ID)
	}
	// Ways take their coordinate from the center field.
	if pois[1].Coord.Lat != 40.7396 {
		t.Errorf("expected center lat, got %f", pois[1].Coord.Lat)
	}
}

func TestClient_Search_BusyServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), testCenter, 1408)
	if !errors.Is(err, poi.ErrSearchUnavailable) {
		t.Fatalf("expected transient search error, got %v", err)
	}
}

func TestClient_Search_QuotaFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), testCenter, 1408)
	if !errors.Is(err, poi.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}
