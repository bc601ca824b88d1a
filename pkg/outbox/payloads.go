package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

// ReservationPlacedEvent is emitted for every booking on a pallet.
type ReservationPlacedEvent struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	PalletID          uuid.UUID `json:"pallet_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	Bottles           int       `json:"bottles"`
	ShippingCostCents int64     `json:"shipping_cost_cents"`
	Overbooked        bool      `json:"overbooked,omitempty"`
}

// PalletCompletedEvent tells billing to collect payment from every
// reservation that moved to pending_payment.
type PalletCompletedEvent struct {
	PalletID        uuid.UUID   `json:"pallet_id"`
	ReservedBottles int         `json:"reserved_bottles"`
	BottleCapacity  int         `json:"bottle_capacity"`
	CompletedAt     time.Time   `json:"completed_at"`
	PaymentDeadline time.Time   `json:"payment_deadline"`
	ReservationIDs  []uuid.UUID `json:"reservation_ids"`
}

type PalletStatusChangedEvent struct {
	PalletID uuid.UUID          `json:"pallet_id"`
	From     enums.PalletStatus `json:"from"`
	To       enums.PalletStatus `json:"to"`
}

type PalletReopenedEvent struct {
	PalletID        uuid.UUID `json:"pallet_id"`
	ReservedBottles int       `json:"reserved_bottles"`
	Reason          string    `json:"reason,omitempty"`
}

type ReservationCancelledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	PalletID      uuid.UUID `json:"pallet_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Bottles       int       `json:"bottles"`
}

type ReservationExpiredEvent struct {
	ReservationID   uuid.UUID `json:"reservation_id"`
	PalletID        uuid.UUID `json:"pallet_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	PaymentDeadline time.Time `json:"payment_deadline"`
	ExpiredAt       time.Time `json:"expired_at"`
}
