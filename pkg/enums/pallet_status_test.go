package enums

import "testing"

func TestPalletStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PalletStatus
		allowed  bool
	}{
		{PalletStatusOpen, PalletStatusConsolidating, true},
		{PalletStatusOpen, PalletStatusShipped, true},
		{PalletStatusConsolidating, PalletStatusDelivered, true},
		{PalletStatusShipped, PalletStatusConsolidating, false},
		{PalletStatusDelivered, PalletStatusDelivered, false},
		{PalletStatusOpen, PalletStatus("LOST"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestParsePalletStatusIsCaseInsensitive(t *testing.T) {
	got, err := ParsePalletStatus(" shipped ")
	if err != nil || got != PalletStatusShipped {
		t.Fatalf("expected SHIPPED, got %q err=%v", got, err)
	}
	if !got.IsDispatched() {
		t.Fatalf("shipped pallets are dispatched")
	}
	if _, err := ParsePalletStatus("packing"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestReservationStatusActiveSet(t *testing.T) {
	active := map[ReservationStatus]bool{
		ReservationStatusPlaced:         true,
		ReservationStatusPendingPayment: true,
		ReservationStatusPaid:           true,
		ReservationStatusCancelled:      false,
		ReservationStatusExpired:        false,
	}
	for status, want := range active {
		if status.IsActive() != want {
			t.Fatalf("%s active: expected %v", status, want)
		}
	}
	if ReservationStatusPaid.IsCancellable() {
		t.Fatalf("paid reservations cannot be cancelled")
	}
}

func TestParseQuantityRule(t *testing.T) {
	if rule, err := ParseQuantityRule("minimum"); err != nil || rule != QuantityRuleMinimum {
		t.Fatalf("expected minimum, got %q err=%v", rule, err)
	}
	if _, err := ParseQuantityRule("dozen"); err == nil {
		t.Fatalf("expected error for unknown rule")
	}
}
