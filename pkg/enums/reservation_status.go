package enums

import "fmt"

// ReservationStatus tracks an order reservation on a pallet.
type ReservationStatus string

const (
	ReservationStatusPlaced         ReservationStatus = "placed"
	ReservationStatusPendingPayment ReservationStatus = "pending_payment"
	ReservationStatusPaid           ReservationStatus = "paid"
	ReservationStatusCancelled      ReservationStatus = "cancelled"
	ReservationStatusExpired        ReservationStatus = "expired"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPlaced,
	ReservationStatusPendingPayment,
	ReservationStatusPaid,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

// ActiveReservationStatuses are the statuses whose bottles count against a
// pallet's capacity.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationStatusPlaced,
	ReservationStatusPendingPayment,
	ReservationStatusPaid,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsActive reports whether the reservation still holds pallet capacity.
func (r ReservationStatus) IsActive() bool {
	for _, candidate := range ActiveReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a customer may still withdraw the reservation.
func (r ReservationStatus) IsCancellable() bool {
	return r == ReservationStatusPlaced || r == ReservationStatusPendingPayment
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
