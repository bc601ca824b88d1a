package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

// Zone is a pickup or delivery catchment. Membership is by radius around
// Center when both are set, otherwise by postal rules.
type Zone struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string                `gorm:"column:name;not null"`
	Type             enums.ZoneType        `gorm:"column:type;type:text;not null"`
	Center           *types.GeographyPoint `gorm:"column:center;type:geography(Point,4326)"`
	RadiusKm         *float64              `gorm:"column:radius_km"`
	CountryCode      *string               `gorm:"column:country_code"`
	PostcodePrefixes pq.StringArray        `gorm:"column:postcode_prefixes;type:text[]"`
	Cities           pq.StringArray        `gorm:"column:cities;type:text[]"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (z *Zone) BeforeCreate(*gorm.DB) error {
	ensureID(&z.ID)
	return nil
}

// HasRadius reports whether the zone can be matched geometrically.
func (z Zone) HasRadius() bool {
	return z.Center != nil && z.RadiusKm != nil && *z.RadiusKm >= 0
}
