// Package geo implements great-circle geometry over WGS84 coordinates.
package geo

import (
	"math"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between a and b.
func Haversine(a, b domain.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h a hair outside [0,1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Distance returns the length of path in meters: the sum of the haversine
// distances between consecutive coordinates, accumulated left to right.
// Paths with fewer than two coordinates have zero length.
func Distance(path []domain.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

// PathDistance is Distance over timestamped points.
func PathDistance(points []domain.PathPoint) float64 {
	return Distance(domain.Coordinates(points))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
