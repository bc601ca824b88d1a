package pallet

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

func TestFillPercentage(t *testing.T) {
	cases := []struct {
		name     string
		reserved int
		capacity int
		status   enums.PalletStatus
		want     *int
	}{
		{"empty", 0, 24, enums.PalletStatusOpen, intPtr(0)},
		{"rounds half up", 1, 8, enums.PalletStatusOpen, intPtr(13)},
		{"two thirds", 16, 24, enums.PalletStatusOpen, intPtr(67)},
		{"full", 24, 24, enums.PalletStatusConsolidating, intPtr(100)},
		{"over allocated clamps", 30, 24, enums.PalletStatusOpen, intPtr(100)},
		{"negative reserved clamps", -4, 24, enums.PalletStatusOpen, intPtr(0)},
		{"shipped hides", 12, 24, enums.PalletStatusShipped, nil},
		{"delivered hides", 12, 24, enums.PalletStatusDelivered, nil},
		{"zero capacity unknown", 5, 0, enums.PalletStatusOpen, nil},
		{"negative capacity unknown", 5, -1, enums.PalletStatusShipped, nil},
	}
	for _, tc := range cases {
		got := FillPercentage(tc.reserved, tc.capacity, tc.status)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("%s: expected nil got %d", tc.name, *got)
		case tc.want != nil && got == nil:
			t.Fatalf("%s: expected %d got nil", tc.name, *tc.want)
		case tc.want != nil && *got != *tc.want:
			t.Fatalf("%s: expected %d got %d", tc.name, *tc.want, *got)
		}
	}
}

func TestFillPercentageStaysInRange(t *testing.T) {
	for capacity := 1; capacity <= 60; capacity++ {
		for reserved := 0; reserved <= capacity*2; reserved++ {
			for _, status := range []enums.PalletStatus{enums.PalletStatusOpen, enums.PalletStatusConsolidating} {
				got := FillPercentage(reserved, capacity, status)
				if got == nil || *got < 0 || *got > 100 {
					t.Fatalf("out of range for %d/%d: %v", reserved, capacity, got)
				}
			}
		}
	}
}

func TestShouldMarkComplete(t *testing.T) {
	cases := []struct {
		reserved, capacity int
		want               bool
	}{
		{23, 24, false},
		{24, 24, true},
		{25, 24, true},
		{0, 0, false},
		{10, 0, false},
	}
	for _, tc := range cases {
		if got := ShouldMarkComplete(tc.reserved, tc.capacity); got != tc.want {
			t.Fatalf("ShouldMarkComplete(%d,%d) = %v", tc.reserved, tc.capacity, got)
		}
	}
}

func TestRemainingCapacity(t *testing.T) {
	if got := RemainingCapacity(18, 24); got != 6 {
		t.Fatalf("expected 6 got %d", got)
	}
	if got := RemainingCapacity(30, 24); got != 0 {
		t.Fatalf("over allocation must not go negative, got %d", got)
	}
}

func TestCostSplit(t *testing.T) {
	perBottle, err := CostPerBottleCents(100000, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100000/24 = 4166.67 -> 4167
	if !perBottle.Equal(decimal.NewFromInt(4167)) {
		t.Fatalf("expected 4167 got %s", perBottle)
	}
	if got := ShippingCostCents(6, perBottle); got != 25002 {
		t.Fatalf("expected 25002 got %d", got)
	}

	half, _ := CostPerBottleCents(30, 4)
	if !half.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("7.5 must round half up to 8, got %s", half)
	}

	if _, err := CostPerBottleCents(1000, 0); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
	if ShippingCostCents(0, perBottle) != 0 {
		t.Fatalf("no bottles means no cost")
	}
}

func TestCostSplitDriftIsBounded(t *testing.T) {
	for capacity := 1; capacity <= 120; capacity++ {
		const cost = 99999
		perBottle, _ := CostPerBottleCents(cost, capacity)
		total := ShippingCostCents(capacity, perBottle)
		drift := total - cost
		if drift < 0 {
			drift = -drift
		}
		if float64(drift) > float64(capacity)*0.5 {
			t.Fatalf("capacity %d drift %d exceeds bound", capacity, drift)
		}
	}
}

func TestNewFillStateScenario(t *testing.T) {
	before := NewFillState(18, 24, enums.PalletStatusOpen, 48000)
	if before.ShouldComplete || before.RemainingBottles != 6 || *before.PercentFilled != 75 {
		t.Fatalf("unexpected state before booking %+v", before)
	}
	after := NewFillState(24, 24, enums.PalletStatusOpen, 48000)
	if !after.ShouldComplete || *after.PercentFilled != 100 || after.CostPerBottleCents != 2000 {
		t.Fatalf("unexpected state after booking %+v", after)
	}
	partial := NewFillState(16, 24, enums.PalletStatusOpen, 0)
	if partial.ShouldComplete || *partial.PercentFilled != 67 {
		t.Fatalf("unexpected partial state %+v", partial)
	}
}

func intPtr(v int) *int { return &v }
