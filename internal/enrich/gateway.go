// Package enrich resolves a coordinate into human-readable location details.
// The Gateway merges a reverse-geocode lookup with a nearby-places lookup and
// absorbs every failure: the worst outcome is an empty LocationDetails.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
)

// ErrLookupPanicked marks a lookup that panicked instead of returning.
var ErrLookupPanicked = errors.New("enrichment lookup panicked")

// Geocode is the subset of a reverse-geocode result kept on an entry.
type Geocode struct {
	Address      *string
	PlaceID      *string
	LocationType *string
	Types        []string
}

// Geocoder performs reverse geocoding. Implementations bound their own calls
// with a timeout; the Gateway adds none.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c domain.Coordinate) (Geocode, error)
}

// PlacesFinder lists points of interest within radiusMeters of c.
type PlacesFinder interface {
	NearbyPlaces(ctx context.Context, c domain.Coordinate, radiusMeters int) ([]domain.NearbyPlace, error)
}

// Resolver is what the journal service depends on.
type Resolver interface {
	Resolve(ctx context.Context, c domain.Coordinate) domain.LocationDetails
}

// Gateway implements Resolver on top of a Geocoder and a PlacesFinder.
// Either may be nil, in which case that lookup is skipped.
type Gateway struct {
	geocoder Geocoder
	places   PlacesFinder
	radius   int
	log      *slog.Logger
}

var _ Resolver = (*Gateway)(nil)

// NewGateway constructs a Gateway. A radius of 0 disables the nearby lookup.
func NewGateway(geocoder Geocoder, places PlacesFinder, radiusMeters int, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{geocoder: geocoder, places: places, radius: radiusMeters, log: log}
}

// Resolve runs both lookups concurrently and merges whatever succeeded.
// It never returns an error; failed lookups are logged as degraded.
func (g *Gateway) Resolve(ctx context.Context, c domain.Coordinate) domain.LocationDetails {
	var (
		geo    Geocode
		nearby []domain.NearbyPlace
		eg     errgroup.Group
	)

	// Plain Group, not WithContext: one failing lookup must not cancel the other.
	if g.geocoder != nil {
		eg.Go(g.lookup(ctx, "geocode", c, func() error {
			res, err := g.geocoder.ReverseGeocode(ctx, c)
			if err != nil {
				return err
			}
			geo = res
			return nil
		}))
	}
	if g.places != nil && g.radius > 0 {
		eg.Go(g.lookup(ctx, "nearby", c, func() error {
			res, err := g.places.NearbyPlaces(ctx, c, g.radius)
			if err != nil {
				return err
			}
			nearby = res
			return nil
		}))
	}
	_ = eg.Wait()

	return domain.LocationDetails{
		Address:      geo.Address,
		PlaceID:      geo.PlaceID,
		LocationType: geo.LocationType,
		Types:        geo.Types,
		NearbyPlaces: nearby,
	}
}

// lookup wraps fn for the errgroup. Errors and panics are recorded as
// degraded and never reach the group: a panic on this goroutine would
// otherwise bypass the HTTP recoverer and end the process.
func (g *Gateway) lookup(ctx context.Context, name string, c domain.Coordinate, fn func() error) func() error {
	return func() error {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrLookupPanicked, r)
			}
			if err != nil {
				g.degraded(ctx, name, c, err)
			}
		}()
		err = fn()
		return nil
	}
}

func (g *Gateway) degraded(ctx context.Context, lookup string, c domain.Coordinate, err error) {
	metrics.EnrichmentDegraded.WithLabelValues(lookup).Inc()
	g.log.WarnContext(ctx, "enrichment degraded",
		"lookup", lookup,
		"coordinate", c.String(),
		"error", err,
	)
}
