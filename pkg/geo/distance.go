// Package geo holds great-circle helpers for zone membership.
package geo

import (
	"math"

	"github.com/palletwine/palletwine-backend/pkg/types"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b types.GeographyPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether p lies within radiusKm of center, boundary
// included. Negative radii never match.
func WithinRadius(center types.GeographyPoint, radiusKm float64, p types.GeographyPoint) bool {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return false
	}
	return HaversineKm(center, p) <= radiusKm
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
