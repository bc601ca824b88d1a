package geo

import (
	"math"
	"testing"

	"github.com/palletwine/palletwine-backend/pkg/types"
)

var stockholm = types.GeographyPoint{Lat: 59.3293, Lng: 18.0686}

func TestHaversineKnownDistance(t *testing.T) {
	gothenburg := types.GeographyPoint{Lat: 57.7089, Lng: 11.9746}
	got := HaversineKm(stockholm, gothenburg)
	if math.Abs(got-397.6) > 2 {
		t.Fatalf("expected ~398km Stockholm to Gothenburg, got %.1f", got)
	}
	if HaversineKm(stockholm, stockholm) != 0 {
		t.Fatalf("distance to self must be zero")
	}
}

func TestWithinRadiusCenterAlwaysMatches(t *testing.T) {
	for _, radius := range []float64{0, 0.001, 50, 5000} {
		if !WithinRadius(stockholm, radius, stockholm) {
			t.Fatalf("center must match for radius %v", radius)
		}
	}
	if WithinRadius(stockholm, -1, stockholm) {
		t.Fatalf("negative radius must never match")
	}
}

func TestWithinRadiusBoundaryIsInclusive(t *testing.T) {
	north := types.GeographyPoint{Lat: stockholm.Lat + 0.45, Lng: stockholm.Lng}
	d := HaversineKm(stockholm, north)

	if !WithinRadius(stockholm, d, north) {
		t.Fatalf("point exactly on the boundary must match")
	}
	if WithinRadius(stockholm, d-1e-6, north) {
		t.Fatalf("point just beyond the boundary must not match")
	}
}
