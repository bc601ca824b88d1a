package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

// bookingRouter mounts handler the way the API router does, so the
// middleware only sees the booking route.
func bookingRouter(store IdempotencyStore, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.With(Idempotent(store, BookingIdempotencyTTL, logger.Nop())).
		Post("/api/v1/pallets/{palletId}/bookings", handler)
	r.Post("/api/v1/checkout/zones", handler)
	return r
}

func book(t *testing.T, h http.Handler, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestIdempotentRequiresHeader(t *testing.T) {
	called := false
	h := bookingRouter(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})

	resp := book(t, h, "/api/v1/pallets/p1/bookings", "", `{"items":[]}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler should not run without an idempotency key")
	}
}

func TestIdempotentOnlyGuardsWrappedRoutes(t *testing.T) {
	called := false
	h := bookingRouter(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	resp := book(t, h, "/api/v1/checkout/zones", "", `{}`)
	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected zones to pass through, code=%d called=%v", resp.Code, called)
	}
}

func TestIdempotentReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	h := bookingRouter(store, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	first := book(t, h, "/api/v1/pallets/p1/bookings", "abc", `{"items":[]}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}
	if first.Header().Get(IdempotentReplayed) != "" {
		t.Fatal("first response must not be flagged as replayed")
	}

	second := book(t, h, "/api/v1/pallets/p1/bookings", "abc", `{"items":[]}`)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", second.Code)
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected content-type to be replayed")
	}
	if second.Header().Get(IdempotentReplayed) != "true" {
		t.Fatal("expected replay marker header")
	}
	if second.Body.String() != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", second.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != BookingIdempotencyTTL {
			t.Fatalf("key %s stored with ttl %v", key, ttl)
		}
	}
}

func TestIdempotentScopesKeysByPath(t *testing.T) {
	var calls int
	h := bookingRouter(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	book(t, h, "/api/v1/pallets/p1/bookings", "same", `{"items":[]}`)
	book(t, h, "/api/v1/pallets/p2/bookings", "same", `{"items":[]}`)
	if calls != 2 {
		t.Fatalf("expected one key per pallet, handler ran %d times", calls)
	}
}

func TestIdempotentDetectsBodyChange(t *testing.T) {
	h := bookingRouter(newFakeStore(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	book(t, h, "/api/v1/pallets/p1/bookings", "xyz", `{"items":[1]}`)
	resp := book(t, h, "/api/v1/pallets/p1/bookings", "xyz", `{"items":[2]}`)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp.Body.Bytes()); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotentRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	var dup *httptest.ResponseRecorder
	var h http.Handler
	h = bookingRouter(store, func(w http.ResponseWriter, _ *http.Request) {
		if dup == nil {
			// a duplicate arriving while the first request is still running
			dup = book(t, h, "/api/v1/pallets/p1/bookings", "race", `{"items":[]}`)
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := book(t, h, "/api/v1/pallets/p1/bookings", "race", `{"items":[]}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first request to succeed, got %d", first.Code)
	}
	if dup == nil || dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight duplicate, got %+v", dup)
	}
	if code := errorCode(t, dup.Body.Bytes()); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	h := bookingRouter(store, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	book(t, h, "/api/v1/pallets/p1/bookings", "retry", `{"items":[]}`)
	resp := book(t, h, "/api/v1/pallets/p1/bookings", "retry", `{"items":[]}`)

	if calls != 2 || resp.Code != http.StatusCreated {
		t.Fatalf("expected retry to reach the handler, calls=%d code=%d", calls, resp.Code)
	}
	if len(store.data) != 1 {
		t.Fatalf("expected the successful response to be stored, got %d keys", len(store.data))
	}
}

func TestIdempotentWithoutStorePassesThrough(t *testing.T) {
	called := false
	h := Idempotent(nil, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/pallets/p1/bookings", nil))
	if !called {
		t.Fatal("expected passthrough when no store is configured")
	}
}
