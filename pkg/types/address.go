package types

import (
	"strings"
)

// DeliveryAddress is the customer destination used for zone matching.
// Coordinates are optional; postal fields serve as the fallback.
type DeliveryAddress struct {
	Line        string   `json:"line,omitempty" validate:"omitempty,max=512"`
	City        string   `json:"city,omitempty" validate:"omitempty,max=128"`
	Postcode    string   `json:"postcode,omitempty" validate:"omitempty,max=32"`
	CountryCode string   `json:"countryCode,omitempty" validate:"omitempty,len=2,alpha"`
	Lat         *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

// Point returns the resolved coordinate, if both halves are present.
func (a DeliveryAddress) Point() (GeographyPoint, bool) {
	if a.Lat == nil || a.Lng == nil {
		return GeographyPoint{}, false
	}
	return GeographyPoint{Lat: *a.Lat, Lng: *a.Lng}, true
}

// WithPoint returns a copy of the address carrying p as its coordinate.
func (a DeliveryAddress) WithPoint(p GeographyPoint) DeliveryAddress {
	lat, lng := p.Lat, p.Lng
	a.Lat, a.Lng = &lat, &lng
	return a
}

// HasPostalFields reports whether postal matching has anything to work with.
func (a DeliveryAddress) HasPostalFields() bool {
	return strings.TrimSpace(a.CountryCode) != ""
}

// Geocodable reports whether the address has enough text to geocode.
func (a DeliveryAddress) Geocodable() bool {
	return a.GeocodeQuery() != ""
}

// GeocodeQuery joins the populated postal fields into a single search string.
func (a DeliveryAddress) GeocodeQuery() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{a.Line, a.Postcode, a.City, a.CountryCode} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizedPostcode strips whitespace and upper-cases the postcode so
// "114 55" and "11455" compare equal.
func (a DeliveryAddress) NormalizedPostcode() string {
	return NormalizePostcode(a.Postcode)
}

func NormalizePostcode(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), ""))
}
