package enrich_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/enrich"
)

func newGoogle(t *testing.T, h http.HandlerFunc) *enrich.GoogleClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return enrich.NewGoogleClient("test-key", 200*time.Millisecond, nil, enrich.WithBaseURL(srv.URL))
}

func TestGoogleClient_ReverseGeocode(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/json", r.URL.Path)
		assert.Equal(t, "49.270000,-123.250000", r.URL.Query().Get("latlng"))
		assert.Equal(t, "street_address|point_of_interest|establishment", r.URL.Query().Get("result_type"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{
					"formatted_address": "6133 University Blvd, Vancouver, BC",
					"place_id": "ChIJ-1",
					"types": ["street_address"],
					"geometry": {"location": {"lat": 49.27, "lng": -123.25}, "location_type": "ROOFTOP"}
				},
				{"formatted_address": "Vancouver, BC", "place_id": "ChIJ-2"}
			]
		}`))
	})

	got, err := c.ReverseGeocode(context.Background(), ubc)

	require.NoError(t, err)
	require.NotNil(t, got.Address)
	assert.Equal(t, "6133 University Blvd, Vancouver, BC", *got.Address)
	assert.Equal(t, "ChIJ-1", *got.PlaceID)
	assert.Equal(t, "ROOFTOP", *got.LocationType)
	assert.Equal(t, []string{"street_address"}, got.Types)
}

func TestGoogleClient_ReverseGeocode_ZeroResults(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	got, err := c.ReverseGeocode(context.Background(), ubc)

	require.NoError(t, err)
	assert.Nil(t, got.Address)
}

func TestGoogleClient_ReverseGeocode_DeniedIsLookupError(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	})

	_, err := c.ReverseGeocode(context.Background(), ubc)

	assert.ErrorIs(t, err, enrich.ErrLookup)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogleClient_HTTPFailure(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ReverseGeocode(context.Background(), ubc)

	assert.Error(t, err)
}

func TestGoogleClient_Timeout(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	_, err := c.NearbyPlaces(context.Background(), ubc, 100)

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "the client timeout bounds the call")
}

func TestGoogleClient_NearbyPlaces(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/nearbysearch/json", r.URL.Path)
		assert.Equal(t, "49.270000,-123.250000", r.URL.Query().Get("location"))
		assert.Equal(t, "100", r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{
					"place_id": "p1",
					"name": "Nest",
					"vicinity": "6133 University Blvd",
					"types": ["cafe", "food"],
					"rating": 4.2,
					"geometry": {"location": {"lat": 49.2701, "lng": -123.2501}}
				},
				{"place_id": "p2", "name": "Bookstore", "geometry": {"location": {"lat": 49.2702, "lng": -123.2502}}}
			]
		}`))
	})

	got, err := c.NearbyPlaces(context.Background(), ubc, 100)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Nest", got[0].Name)
	assert.Equal(t, "6133 University Blvd", got[0].Vicinity)
	require.NotNil(t, got[0].Rating)
	assert.Equal(t, 4.2, *got[0].Rating)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, -123.2501, got[0].Location.Longitude)
	assert.Nil(t, got[1].Rating)
	assert.Empty(t, got[1].Vicinity)
}

// A Gateway whose Google lookups throw still resolves, to empty details.
func TestGateway_WithFailingGoogle(t *testing.T) {
	c := newGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	g := enrich.NewGateway(c, c, 100, nil)

	got := g.Resolve(context.Background(), ubc)

	assert.True(t, got.IsEmpty())
}
