package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePallet      OutboxAggregateType = "pallet"
	AggregateReservation OutboxAggregateType = "reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePallet,
	AggregateReservation,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventReservationPlaced    OutboxEventType = "reservation_placed"
	EventPalletCompleted      OutboxEventType = "pallet_completed"
	EventPalletStatusChanged  OutboxEventType = "pallet_status_changed"
	EventPalletReopened       OutboxEventType = "pallet_reopened"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventReservationExpired   OutboxEventType = "reservation_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationPlaced,
	EventPalletCompleted,
	EventPalletStatusChanged,
	EventPalletReopened,
	EventReservationCancelled,
	EventReservationExpired,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
