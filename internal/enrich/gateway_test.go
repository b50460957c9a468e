package enrich_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/enrich"
)

// mockGeocoder is a hand-written test double for enrich.Geocoder.
type mockGeocoder struct {
	reverseFn func(ctx context.Context, c domain.Coordinate) (enrich.Geocode, error)
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (enrich.Geocode, error) {
	return m.reverseFn(ctx, c)
}

var _ enrich.Geocoder = (*mockGeocoder)(nil)

// mockPlaces is a hand-written test double for enrich.PlacesFinder.
type mockPlaces struct {
	nearbyFn func(ctx context.Context, c domain.Coordinate, radius int) ([]domain.NearbyPlace, error)
}

func (m *mockPlaces) NearbyPlaces(ctx context.Context, c domain.Coordinate, radius int) ([]domain.NearbyPlace, error) {
	return m.nearbyFn(ctx, c, radius)
}

var _ enrich.PlacesFinder = (*mockPlaces)(nil)

var ubc = domain.Coordinate{Longitude: -123.25, Latitude: 49.27}

func str(s string) *string { return &s }

func okGeocoder() *mockGeocoder {
	return &mockGeocoder{reverseFn: func(context.Context, domain.Coordinate) (enrich.Geocode, error) {
		return enrich.Geocode{
			Address:      str("6133 University Blvd"),
			PlaceID:      str("place-1"),
			LocationType: str("ROOFTOP"),
			Types:        []string{"street_address"},
		}, nil
	}}
}

func okPlaces() *mockPlaces {
	return &mockPlaces{nearbyFn: func(context.Context, domain.Coordinate, int) ([]domain.NearbyPlace, error) {
		return []domain.NearbyPlace{{PlaceID: "p1", Name: "Nest"}}, nil
	}}
}

func TestGateway_Resolve_MergesBothLookups(t *testing.T) {
	var gotRadius int
	places := okPlaces()
	inner := places.nearbyFn
	places.nearbyFn = func(ctx context.Context, c domain.Coordinate, radius int) ([]domain.NearbyPlace, error) {
		gotRadius = radius
		return inner(ctx, c, radius)
	}
	g := enrich.NewGateway(okGeocoder(), places, 150, nil)

	got := g.Resolve(context.Background(), ubc)

	require.NotNil(t, got.Address)
	assert.Equal(t, "6133 University Blvd", *got.Address)
	assert.Equal(t, "ROOFTOP", *got.LocationType)
	assert.Equal(t, []string{"street_address"}, got.Types)
	require.Len(t, got.NearbyPlaces, 1)
	assert.Equal(t, "Nest", got.NearbyPlaces[0].Name)
	assert.Equal(t, 150, gotRadius)
}

func TestGateway_Resolve_GeocodeFailureKeepsPlaces(t *testing.T) {
	failing := &mockGeocoder{reverseFn: func(context.Context, domain.Coordinate) (enrich.Geocode, error) {
		return enrich.Geocode{}, errors.New("timeout")
	}}
	g := enrich.NewGateway(failing, okPlaces(), 100, nil)

	got := g.Resolve(context.Background(), ubc)

	assert.Nil(t, got.Address)
	assert.Len(t, got.NearbyPlaces, 1, "a failing geocoder must not cancel the places lookup")
}

func TestGateway_Resolve_PanickingLookupIsDegraded(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	geo := &mockGeocoder{reverseFn: func(context.Context, domain.Coordinate) (enrich.Geocode, error) {
		panic("nil map in geocode response")
	}}
	g := enrich.NewGateway(geo, okPlaces(), 100, log)

	var got domain.LocationDetails
	require.NotPanics(t, func() { got = g.Resolve(context.Background(), ubc) })

	assert.Nil(t, got.Address)
	assert.Len(t, got.NearbyPlaces, 1)
	assert.Contains(t, buf.String(), enrich.ErrLookupPanicked.Error())
	assert.Contains(t, buf.String(), "nil map in geocode response")
}

func TestGateway_Resolve_PanickingPlacesKeepsGeocode(t *testing.T) {
	places := &mockPlaces{nearbyFn: func(context.Context, domain.Coordinate, int) ([]domain.NearbyPlace, error) {
		panic(errors.New("index out of range"))
	}}
	g := enrich.NewGateway(okGeocoder(), places, 100, nil)

	got := g.Resolve(context.Background(), ubc)

	require.NotNil(t, got.Address)
	assert.Empty(t, got.NearbyPlaces)
}

func TestGateway_Resolve_AllFailuresYieldEmptyDetails(t *testing.T) {
	geo := &mockGeocoder{reverseFn: func(context.Context, domain.Coordinate) (enrich.Geocode, error) {
		return enrich.Geocode{}, errors.New("boom")
	}}
	places := &mockPlaces{nearbyFn: func(context.Context, domain.Coordinate, int) ([]domain.NearbyPlace, error) {
		return nil, errors.New("boom")
	}}
	g := enrich.NewGateway(geo, places, 100, nil)

	got := g.Resolve(context.Background(), ubc)

	assert.True(t, got.IsEmpty())
}

func TestGateway_Resolve_ZeroRadiusSkipsPlaces(t *testing.T) {
	var called atomic.Bool
	places := &mockPlaces{nearbyFn: func(context.Context, domain.Coordinate, int) ([]domain.NearbyPlace, error) {
		called.Store(true)
		return nil, nil
	}}
	g := enrich.NewGateway(okGeocoder(), places, 0, nil)

	got := g.Resolve(context.Background(), ubc)

	assert.False(t, called.Load())
	assert.NotNil(t, got.Address)
}

func TestGateway_Resolve_NoCollaborators(t *testing.T) {
	g := enrich.NewGateway(nil, nil, 100, nil)

	assert.True(t, g.Resolve(context.Background(), ubc).IsEmpty())
}
