// Package geo holds coordinate helpers shared by locations and photos.
package geo

import "math"

const earthRadiusKm = 6371.0

// DedupTolerance is the per-axis distance in degrees under which two points
// are treated as the same place.
const DedupTolerance = 0.0005

// boxSlack absorbs float rounding so a point exactly on the box edge counts
// as inside.
const boxSlack = 1e-9

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether both axes are exactly zero, which uploads use to
// mean "no GPS data".
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// Valid reports whether the point is within the WGS84 range.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// WithinBox reports whether a and b differ by at most tol on each axis.
func WithinBox(a, b Coordinates, tol float64) bool {
	return math.Abs(a.Latitude-b.Latitude) <= tol+boxSlack &&
		math.Abs(a.Longitude-b.Longitude) <= tol+boxSlack
}

// Box returns the inclusive bounds of the tolerance square around c, padded
// by the float slack so a SQL BETWEEN prefilter never drops edge matches.
func Box(c Coordinates, tol float64) (minLat, maxLat, minLon, maxLon float64) {
	pad := tol + boxSlack
	return c.Latitude - pad, c.Latitude + pad, c.Longitude - pad, c.Longitude + pad
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceKm is HaversineKm over Coordinates.
func DistanceKm(a, b Coordinates) float64 {
	return HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
