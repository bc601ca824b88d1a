package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/types"
)

type Producer struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string                `gorm:"column:name;not null"`
	Region       string                `gorm:"column:region;not null;default:''"`
	Location     *types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	PickupZoneID *uuid.UUID            `gorm:"column:pickup_zone_id;type:uuid"`
	QuantityRule enums.QuantityRule    `gorm:"column:quantity_rule;type:text;not null;default:'multiple'"`
	QuantityStep int                   `gorm:"column:quantity_step;not null;default:6"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Producer) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
