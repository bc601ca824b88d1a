package session

import (
	"context"
	"errors"
	"testing"
)

type mapLookup struct {
	live  map[string]bool
	err   error
	calls int
}

func (m *mapLookup) SessionActive(_ context.Context, accessID string) (bool, error) {
	m.calls++
	return m.live[accessID], m.err
}

func TestCheckerHasSession(t *testing.T) {
	store := &mapLookup{live: map[string]bool{"access-1": true}}
	checker, err := NewChecker(store)
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	ctx := context.Background()

	if ok, err := checker.HasSession(ctx, "access-1"); err != nil || !ok {
		t.Fatalf("expected live session, got ok=%v err=%v", ok, err)
	}
	if ok, _ := checker.HasSession(ctx, "revoked"); ok {
		t.Fatal("expected revoked session to be inactive")
	}
	if ok, _ := checker.HasSession(ctx, "  "); ok || store.calls != 2 {
		t.Fatalf("blank ids must short-circuit, calls=%d", store.calls)
	}
}

func TestCheckerPropagatesStoreErrors(t *testing.T) {
	checker, _ := NewChecker(&mapLookup{err: errors.New("redis down")})
	if _, err := checker.HasSession(context.Background(), "access-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewCheckerRequiresStore(t *testing.T) {
	if _, err := NewChecker(nil); err == nil {
		t.Fatal("expected error")
	}
}
