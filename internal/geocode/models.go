package geocode

import (
	"context"
	"errors"
)

// ErrNoResult is returned when the provider has nothing for a point, answers
// with an error, or cannot be reached.
var ErrNoResult = errors.New("geocode: no result")

const unknownName = "Unknown Location"

type Place struct {
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	City        string            `json:"city,omitempty"`
	State       string            `json:"state,omitempty"`
	Country     string            `json:"country,omitempty"`
	CountryCode string            `json:"country_code,omitempty"`
	Postcode    string            `json:"postcode,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Components  map[string]string `json:"components,omitempty"`
}

// ReverseGeocoder turns a point into a place description.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}
