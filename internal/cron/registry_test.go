package cron

import (
	"context"
	"strings"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: reservationExpiryJobName}, &stubJob{name: "outbox-retention"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if got := strings.Join(registry.Names(), ","); got != "reservation-expiry,outbox-retention" {
		t.Fatalf("unexpected order %q", got)
	}

	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "outbox-retention"}, &stubJob{name: "outbox-retention"}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}

	var registry Registry
	if err := registry.Register(&stubJob{name: "  "}); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil job to be rejected")
	}
	if err := registry.Register(&stubJob{name: "reservation-expiry"}); err != nil {
		t.Fatalf("zero registry should accept jobs: %v", err)
	}
}
