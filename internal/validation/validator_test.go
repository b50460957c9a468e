package validation_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/validation"
)

func TestCoordinate(t *testing.T) {
	cases := []struct {
		name  string
		c     domain.Coordinate
		valid bool
	}{
		{"origin", domain.Coordinate{}, true},
		{"vancouver", domain.Coordinate{Longitude: -123.25, Latitude: 49.27}, true},
		{"corners", domain.Coordinate{Longitude: 180, Latitude: -90}, true},
		{"longitude too large", domain.Coordinate{Longitude: 180.0001, Latitude: 0}, false},
		{"latitude too small", domain.Coordinate{Longitude: 0, Latitude: -90.5}, false},
		{"nan", domain.Coordinate{Longitude: math.NaN(), Latitude: 0}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validation.Coordinate(tc.c)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrValidation)
			}
		})
	}
}

func TestStruct_NamesFailingField(t *testing.T) {
	err := validation.Struct(domain.PathPoint{
		Coordinate: domain.Coordinate{Longitude: 0, Latitude: 95},
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "latitude must be at most 90")
}

func TestStruct_OwnerEmail(t *testing.T) {
	assert.NoError(t, validation.Struct(domain.Owner{ID: "u1", Email: "a@example.com"}))
	assert.NoError(t, validation.Struct(domain.Owner{ID: "u1"}))
	assert.ErrorIs(t, validation.Struct(domain.Owner{ID: "u1", Email: "nope"}), domain.ErrValidation)
}
