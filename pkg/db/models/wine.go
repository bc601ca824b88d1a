package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Wine struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProducerID uuid.UUID `gorm:"column:producer_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	PriceBand  string    `gorm:"column:price_band;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Wine) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
