// Package domain contains the core data types for the MapMe journal.
// It only depends on the standard library and is imported by every other
// internal package (geo, capture, repo, enrich, service, handler).
package domain

import (
	"fmt"
	"time"
)

// Coordinate is a WGS84 position in degrees.
// Longitude must lie in [-180, 180] and latitude in [-90, 90]; the validate
// tags are enforced by the validation package at every input boundary.
type Coordinate struct {
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
}

// String renders the coordinate as "lat,lng", the order geocoding APIs expect.
func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// PathPoint is a single timestamped sample on a route.
// Accuracy is the reported horizontal accuracy in meters, nil when unknown.
type PathPoint struct {
	Coordinate
	Timestamp time.Time `json:"timestamp"`
	Accuracy  *float64  `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// CheckPathOrder verifies that points are non-decreasing in time and that the
// first one is not earlier than after. A zero after skips the leading check.
func CheckPathOrder(after time.Time, points []PathPoint) error {
	prev := after
	for i, p := range points {
		if !prev.IsZero() && p.Timestamp.Before(prev) {
			return fmt.Errorf("%w: path point %d is earlier than the point before it", ErrValidation, i)
		}
		prev = p.Timestamp
	}
	return nil
}

// Coordinates strips timestamps from a path, preserving order.
func Coordinates(points []PathPoint) []Coordinate {
	out := make([]Coordinate, len(points))
	for i, p := range points {
		out[i] = p.Coordinate
	}
	return out
}
