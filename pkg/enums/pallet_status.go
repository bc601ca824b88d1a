package enums

import (
	"fmt"
	"strings"
)

// PalletStatus tracks a pallet through consolidation and dispatch.
type PalletStatus string

const (
	PalletStatusOpen          PalletStatus = "OPEN"
	PalletStatusConsolidating PalletStatus = "CONSOLIDATING"
	PalletStatusShipped       PalletStatus = "SHIPPED"
	PalletStatusDelivered     PalletStatus = "DELIVERED"
)

// ordered by lifecycle position
var validPalletStatuses = []PalletStatus{
	PalletStatusOpen,
	PalletStatusConsolidating,
	PalletStatusShipped,
	PalletStatusDelivered,
}

// String implements fmt.Stringer.
func (s PalletStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PalletStatus.
func (s PalletStatus) IsValid() bool {
	return s.rank() >= 0
}

// IsDispatched reports whether the pallet has left the consolidation hub.
func (s PalletStatus) IsDispatched() bool {
	return s == PalletStatusShipped || s == PalletStatusDelivered
}

// CanTransitionTo reports whether next is a strictly later lifecycle stage.
func (s PalletStatus) CanTransitionTo(next PalletStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to > from
}

func (s PalletStatus) rank() int {
	for i, candidate := range validPalletStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParsePalletStatus converts raw input into a PalletStatus. Input is
// matched case-insensitively.
func ParsePalletStatus(value string) (PalletStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPalletStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pallet status %q", value)
}
