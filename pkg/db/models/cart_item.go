package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one line of a customer's persisted cart.
type CartItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	WineID     uuid.UUID `gorm:"column:wine_id;type:uuid;not null"`
	ProducerID uuid.UUID `gorm:"column:producer_id;type:uuid;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	PriceBand  string    `gorm:"column:price_band;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
