package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
)

type ReservationItem struct {
	WineID     uuid.UUID `json:"wine_id"`
	ProducerID uuid.UUID `json:"producer_id"`
	Quantity   int       `json:"quantity"`
}

// Reservation is the customer-facing view of an order reservation.
type Reservation struct {
	ID                uuid.UUID               `json:"id"`
	PalletID          uuid.UUID               `json:"pallet_id"`
	Status            enums.ReservationStatus `json:"status"`
	Bottles           int                     `json:"bottles"`
	ShippingCostCents int64                   `json:"shipping_cost_cents"`
	PaymentDeadline   *time.Time              `json:"payment_deadline"`
	Items             []ReservationItem       `json:"items"`
	CreatedAt         time.Time               `json:"created_at"`
}

type ReservationList struct {
	Reservations []Reservation `json:"reservations"`
	NextCursor   string        `json:"next_cursor,omitempty"`
}

func FromModel(m models.OrderReservation) Reservation {
	items := make([]ReservationItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, ReservationItem{
			WineID:     item.WineID,
			ProducerID: item.ProducerID,
			Quantity:   item.Quantity,
		})
	}
	return Reservation{
		ID:                m.ID,
		PalletID:          m.PalletID,
		Status:            m.Status,
		Bottles:           m.Bottles(),
		ShippingCostCents: m.ShippingCostCents,
		PaymentDeadline:   m.PaymentDeadline,
		Items:             items,
		CreatedAt:         m.CreatedAt,
	}
}
