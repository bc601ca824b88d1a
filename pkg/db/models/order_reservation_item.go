package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderReservationItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null"`
	WineID        uuid.UUID `gorm:"column:wine_id;type:uuid;not null"`
	ProducerID    uuid.UUID `gorm:"column:producer_id;type:uuid;not null"`
	Quantity      int       `gorm:"column:quantity;not null"`
}

func (i *OrderReservationItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
