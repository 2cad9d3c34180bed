package location

import (
	"encoding/json"
	"strings"
	"time"

	"backend-journitag/internal/photo"
	"backend-journitag/internal/shared/geo"
)

const defaultCostLevel = "Free"

type Location struct {
	ID              string        `json:"id"`
	TripID          string        `json:"trip_id"`
	X               float64       `json:"x"`
	Y               float64       `json:"y"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	Rating          int           `json:"rating"`
	CostLevel       string        `json:"cost_level"`
	Notes           string        `json:"notes"`
	TimeNeeded      int           `json:"time_needed"`
	BestTimeToVisit string        `json:"best_time_to_visit"`
	CreatedAt       time.Time     `json:"created_at"`
	Tags            []string      `json:"tags"`
	Photos          []photo.Photo `json:"photos,omitempty"`
}

func (l Location) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: l.Y, Longitude: l.X}
}

// ResolveInput describes a location to find or create. A nil or zero
// Coordinates means the place has no GPS fix.
type ResolveInput struct {
	TripID          string
	Coordinates     *geo.Coordinates
	Name            string
	Address         string
	Tags            []string
	Rating          int
	CostLevel       string
	Notes           string
	TimeNeeded      int
	BestTimeToVisit string
}

// Patch holds the fields of an update. Nil fields keep their value; a nil
// Tags leaves tags alone while an empty one clears them.
type Patch struct {
	Name            *string  `json:"name"`
	Address         *string  `json:"address"`
	X               *float64 `json:"x"`
	Y               *float64 `json:"y"`
	Rating          *int     `json:"rating" validate:"omitempty,min=0,max=5"`
	CostLevel       *string  `json:"cost_level"`
	Notes           *string  `json:"notes"`
	TimeNeeded      *int     `json:"time_needed" validate:"omitempty,min=0"`
	BestTimeToVisit *string  `json:"best_time_to_visit"`
	Tags            *TagList `json:"tags"`
}

type Nearby struct {
	Location
	DistanceKm float64 `json:"distance_km"`
}

// TagList decodes either a JSON array of names or one comma separated
// string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = NormalizeTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = NormalizeTags(strings.Split(s, ","))
	return nil
}

// NormalizeTags trims names and drops empties and repeats, keeping order.
func NormalizeTags(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
