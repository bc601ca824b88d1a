package enums

import "fmt"

// ZoneType distinguishes producer pickup catchments from customer delivery areas.
type ZoneType string

const (
	ZoneTypePickup   ZoneType = "pickup"
	ZoneTypeDelivery ZoneType = "delivery"
)

var validZoneTypes = []ZoneType{
	ZoneTypePickup,
	ZoneTypeDelivery,
}

// String implements fmt.Stringer.
func (z ZoneType) String() string {
	return string(z)
}

// IsValid reports whether the value is a known ZoneType.
func (z ZoneType) IsValid() bool {
	for _, candidate := range validZoneTypes {
		if candidate == z {
			return true
		}
	}
	return false
}

// ParseZoneType converts raw input into a ZoneType.
func ParseZoneType(value string) (ZoneType, error) {
	for _, candidate := range validZoneTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid zone type %q", value)
}
