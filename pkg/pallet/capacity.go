// Package pallet computes fill state and shipping cost splits for pallets.
// Everything here is pure so the lifecycle service and handlers agree on
// the numbers.
package pallet

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

var errNonPositiveCapacity = errors.New("pallet capacity must be positive")

// FillPercentage returns reserved/capacity as a whole percentage rounded
// half-up and clamped to [0, 100]. It is nil once the pallet is dispatched
// or when the capacity is unknown.
func FillPercentage(reserved, capacity int, status enums.PalletStatus) *int {
	if status.IsDispatched() || capacity <= 0 {
		return nil
	}
	if reserved < 0 {
		reserved = 0
	}
	pct := (reserved*200 + capacity) / (2 * capacity)
	if pct > 100 {
		pct = 100
	}
	return &pct
}

// ShouldMarkComplete is the single source of truth for the open to complete
// transition.
func ShouldMarkComplete(reserved, capacity int) bool {
	return capacity > 0 && reserved >= capacity
}

// RemainingCapacity never goes negative, even for over-allocated pallets.
func RemainingCapacity(reserved, capacity int) int {
	if remaining := capacity - reserved; remaining > 0 {
		return remaining
	}
	return 0
}

// CostPerBottleCents splits the pallet cost evenly and rounds half-up to
// the whole cent.
func CostPerBottleCents(palletCostCents int64, capacity int) (decimal.Decimal, error) {
	if capacity <= 0 {
		return decimal.Zero, errNonPositiveCapacity
	}
	return decimal.NewFromInt(palletCostCents).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(0), nil
}

// ShippingCostCents charges bottles at the per-bottle rate. Summing this
// over a full pallet may differ from the pallet cost by per-unit rounding.
func ShippingCostCents(bottles int, costPerBottle decimal.Decimal) int64 {
	if bottles <= 0 {
		return 0
	}
	return costPerBottle.Mul(decimal.NewFromInt(int64(bottles))).IntPart()
}

// FillState is the derived capacity snapshot exposed on pallet payloads.
type FillState struct {
	ReservedBottles    int   `json:"reserved_bottles"`
	RemainingBottles   int   `json:"remaining_bottles"`
	PercentFilled      *int  `json:"percent_filled"`
	CostPerBottleCents int64 `json:"cost_per_bottle_cents"`
	ShouldComplete     bool  `json:"-"`
}

// NewFillState computes every derived figure for one pallet.
func NewFillState(reserved, capacity int, status enums.PalletStatus, costCents int64) FillState {
	state := FillState{
		ReservedBottles:  reserved,
		RemainingBottles: RemainingCapacity(reserved, capacity),
		PercentFilled:    FillPercentage(reserved, capacity, status),
		ShouldComplete:   ShouldMarkComplete(reserved, capacity),
	}
	if perBottle, err := CostPerBottleCents(costCents, capacity); err == nil {
		state.CostPerBottleCents = perBottle.IntPart()
	}
	return state
}
