package address

import (
	"context"
	"strings"

	"github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/maps"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

type geocoder interface {
	Geocode(ctx context.Context, address string) (*maps.GeocodeResult, error)
}

// Resolver fills in coordinates for delivery addresses that arrive without
// them.
type Resolver interface {
	Resolve(ctx context.Context, addr types.DeliveryAddress) (types.DeliveryAddress, error)
}

type service struct {
	maps geocoder
}

// NewResolver returns a Resolver backed by client. A nil client yields a
// resolver that always reports the dependency as unavailable.
func NewResolver(client geocoder) Resolver {
	return &service{maps: client}
}

// Resolve geocodes addr when it lacks coordinates. Postal fields the caller
// left empty are completed from the geocoder result; supplied ones win.
func (s *service) Resolve(ctx context.Context, addr types.DeliveryAddress) (types.DeliveryAddress, error) {
	if _, ok := addr.Point(); ok {
		return addr, nil
	}
	if s == nil || s.maps == nil {
		return addr, errors.New(errors.CodeDependency, "maps client unavailable")
	}
	if !addr.Geocodable() {
		return addr, errors.New(errors.CodeValidation, "address has nothing to geocode")
	}

	result, err := s.maps.Geocode(ctx, addr.GeocodeQuery())
	if err != nil {
		return addr, err
	}
	return mapGeocodeResult(addr, result)
}

func mapGeocodeResult(addr types.DeliveryAddress, result *maps.GeocodeResult) (types.DeliveryAddress, error) {
	if result == nil {
		return addr, errors.New(errors.CodeDependency, "empty geocode result")
	}
	point := types.GeographyPoint{Lat: result.Location.Latitude, Lng: result.Location.Longitude}
	if err := point.Validate(); err != nil {
		return addr, errors.Wrap(errors.CodeDependency, err, "geocoder returned invalid coordinates")
	}

	resolved := addr.WithPoint(point)
	if strings.TrimSpace(resolved.Postcode) == "" {
		resolved.Postcode = result.PostalCode
	}
	if strings.TrimSpace(resolved.City) == "" {
		resolved.City = result.City
	}
	if strings.TrimSpace(resolved.CountryCode) == "" {
		resolved.CountryCode = strings.ToUpper(result.CountryCode)
	}
	if strings.TrimSpace(resolved.Line) == "" {
		resolved.Line = result.FormattedAddress
	}
	return resolved, nil
}
