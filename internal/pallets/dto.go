package pallets

import (
	"time"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/internal/reservations"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
	"github.com/palletwine/palletwine-backend/pkg/pallet"
)

// Pallet is the API view of a pallet with its derived fill state.
type Pallet struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	PickupZoneID    uuid.UUID          `json:"pickup_zone_id"`
	DeliveryZoneID  uuid.UUID          `json:"delivery_zone_id"`
	BottleCapacity  int                `json:"bottle_capacity"`
	Status          enums.PalletStatus `json:"status"`
	IsComplete      bool               `json:"is_complete"`
	CompletedAt     *time.Time         `json:"completed_at"`
	PaymentDeadline *time.Time         `json:"payment_deadline"`
	CostCents       int64              `json:"cost_cents"`
	CreatedAt       time.Time          `json:"created_at"`
	pallet.FillState
}

func NewPallet(m models.Pallet, reserved int) Pallet {
	return Pallet{
		ID:              m.ID,
		Name:            m.Name,
		PickupZoneID:    m.PickupZoneID,
		DeliveryZoneID:  m.DeliveryZoneID,
		BottleCapacity:  m.BottleCapacity,
		Status:          m.Status,
		IsComplete:      m.IsComplete,
		CompletedAt:     m.CompletedAt,
		PaymentDeadline: m.PaymentDeadline,
		CostCents:       m.CostCents,
		CreatedAt:       m.CreatedAt,
		FillState:       pallet.NewFillState(reserved, m.BottleCapacity, m.Status, m.CostCents),
	}
}

type PalletList struct {
	Pallets    []Pallet `json:"pallets"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type CreateInput struct {
	Name           string    `json:"name" validate:"required,max=128"`
	PickupZoneID   uuid.UUID `json:"pickup_zone_id" validate:"required"`
	DeliveryZoneID uuid.UUID `json:"delivery_zone_id" validate:"required"`
	BottleCapacity int       `json:"bottle_capacity" validate:"required,gt=0"`
	CostCents      int64     `json:"cost_cents" validate:"gte=0"`
}

type BookingItem struct {
	WineID   uuid.UUID `json:"wine_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// Actor identifies who is booking. Only admins may overbook.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

type BookInput struct {
	Actor      Actor
	CustomerID uuid.UUID
	PalletID   uuid.UUID
	Items      []BookingItem
	// AllowOverbook is honored for admins when the deployment permits it.
	AllowOverbook bool
}

type BookingResult struct {
	Reservation reservations.Reservation `json:"reservation"`
	Pallet      Pallet                   `json:"pallet"`
	Completed   bool                     `json:"completed"`
	Overbooked  bool                     `json:"overbooked"`
}

type ShippingQuote struct {
	PalletID           uuid.UUID `json:"pallet_id"`
	Bottles            int       `json:"bottles"`
	CostPerBottleCents int64     `json:"cost_per_bottle_cents"`
	TotalCents         int64     `json:"total_cents"`
	RemainingBottles   int       `json:"remaining_bottles"`
	Fits               bool      `json:"fits"`
}
