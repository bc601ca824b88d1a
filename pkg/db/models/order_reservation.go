package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

type OrderReservation struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	PalletID          uuid.UUID               `gorm:"column:pallet_id;type:uuid;not null"`
	Status            enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'placed'"`
	PaymentDeadline   *time.Time              `gorm:"column:payment_deadline"`
	ShippingCostCents int64                   `gorm:"column:shipping_cost_cents;not null;default:0"`
	Items             []OrderReservationItem  `gorm:"foreignKey:ReservationID;references:ID"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *OrderReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Bottles sums the loaded item quantities.
func (r OrderReservation) Bottles() int {
	total := 0
	for _, item := range r.Items {
		total += item.Quantity
	}
	return total
}
