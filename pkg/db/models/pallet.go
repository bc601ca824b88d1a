package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

// Pallet is a shipping unit bound to one pickup/delivery zone pair.
// IsComplete only returns to false through an explicit reopen.
type Pallet struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string             `gorm:"column:name;not null"`
	PickupZoneID    uuid.UUID          `gorm:"column:pickup_zone_id;type:uuid;not null"`
	DeliveryZoneID  uuid.UUID          `gorm:"column:delivery_zone_id;type:uuid;not null"`
	BottleCapacity  int                `gorm:"column:bottle_capacity;not null"`
	Status          enums.PalletStatus `gorm:"column:status;type:text;not null;default:'OPEN'"`
	IsComplete      bool               `gorm:"column:is_complete;not null;default:false"`
	CompletedAt     *time.Time         `gorm:"column:completed_at"`
	PaymentDeadline *time.Time         `gorm:"column:payment_deadline"`
	CostCents       int64              `gorm:"column:cost_cents;not null;default:0"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Pallet) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsBookable reports whether new reservations may be attached.
func (p Pallet) IsBookable() bool {
	return !p.IsComplete && (p.Status == enums.PalletStatusOpen || p.Status == enums.PalletStatusConsolidating)
}
