package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
)

// DefaultGoogleBaseURL is the Maps web service root.
const DefaultGoogleBaseURL = "https://maps.googleapis.com/maps/api"

// geocodeResultTypes narrows reverse geocoding to addressable places.
const geocodeResultTypes = "street_address|point_of_interest|establishment"

// ErrLookup is returned when Google answers with a non-OK status.
var ErrLookup = errors.New("google lookup failed")

// GoogleClient calls the Geocoding and Places Nearby Search web services.
// Calls go through a circuit breaker so a failing upstream is not hammered
// on every entry creation.
type GoogleClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

var (
	_ Geocoder     = (*GoogleClient)(nil)
	_ PlacesFinder = (*GoogleClient)(nil)
)

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) GoogleOption {
	return func(c *GoogleClient) { c.baseURL = u }
}

// NewGoogleClient builds a client whose every request is bounded by timeout.
func NewGoogleClient(apiKey string, timeout time.Duration, log *slog.Logger, opts ...GoogleOption) *GoogleClient {
	if log == nil {
		log = slog.Default()
	}
	c := &GoogleClient{
		apiKey:  apiKey,
		baseURL: DefaultGoogleBaseURL,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	const name = "google-maps"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Opens after 5 consecutive failures.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return c
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// googleLocation is Google's {lat, lng} pair.
type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string   `json:"formatted_address"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types"`
	Geometry         struct {
		Location     googleLocation `json:"location"`
		LocationType string         `json:"location_type"`
	} `json:"geometry"`
}

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity *string  `json:"vicinity,omitempty"`
	Types    []string `json:"types"`
	Rating   *float64 `json:"rating,omitempty"`
	Geometry struct {
		Location googleLocation `json:"location"`
	} `json:"geometry"`
}

// ReverseGeocode returns the first geocoding result for c. ZERO_RESULTS is
// not an error; it yields an empty Geocode.
func (c *GoogleClient) ReverseGeocode(ctx context.Context, co domain.Coordinate) (Geocode, error) {
	q := url.Values{}
	q.Set("latlng", co.String())
	q.Set("result_type", geocodeResultTypes)

	var resp geocodeResponse
	if err := c.get(ctx, "/geocode/json", q, &resp); err != nil {
		return Geocode{}, fmt.Errorf("enrich.GoogleClient.ReverseGeocode: %w", err)
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return Geocode{}, fmt.Errorf("enrich.GoogleClient.ReverseGeocode: %w", err)
	}
	if len(resp.Results) == 0 {
		return Geocode{}, nil
	}

	top := resp.Results[0]
	return Geocode{
		Address:      optional(top.FormattedAddress),
		PlaceID:      optional(top.PlaceID),
		LocationType: optional(top.Geometry.LocationType),
		Types:        top.Types,
	}, nil
}

// NearbyPlaces lists places within radiusMeters of co, in Google's order.
func (c *GoogleClient) NearbyPlaces(ctx context.Context, co domain.Coordinate, radiusMeters int) ([]domain.NearbyPlace, error) {
	q := url.Values{}
	q.Set("location", co.String())
	q.Set("radius", strconv.Itoa(radiusMeters))

	var resp placesResponse
	if err := c.get(ctx, "/place/nearbysearch/json", q, &resp); err != nil {
		return nil, fmt.Errorf("enrich.GoogleClient.NearbyPlaces: %w", err)
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, fmt.Errorf("enrich.GoogleClient.NearbyPlaces: %w", err)
	}

	places := make([]domain.NearbyPlace, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := domain.NearbyPlace{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Types:   r.Types,
			Rating:  r.Rating,
			Location: &domain.Coordinate{
				Longitude: r.Geometry.Location.Lng,
				Latitude:  r.Geometry.Location.Lat,
			},
		}
		if r.Vicinity != nil {
			p.Vicinity = *r.Vicinity
		}
		places = append(places, p)
	}
	return places, nil
}

// get fetches path through the circuit breaker and decodes the JSON body.
func (c *GoogleClient) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	}
	if message != "" {
		return fmt.Errorf("%w: %s: %s", ErrLookup, status, message)
	}
	return fmt.Errorf("%w: %s", ErrLookup, status)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
