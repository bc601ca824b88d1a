package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 1000: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffered limit 11")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 42, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch %+v vs %+v", out, in)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("expected nil cursor for blank input")
	}
	if _, err := ParseCursor("%%%"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTrim(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor { return Cursor{ID: id} }

	page, next := Trim(ids, 2, key)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected two rows and a cursor, got %d %q", len(page), next)
	}
	c, err := ParseCursor(next)
	if err != nil || c.ID != ids[1] {
		t.Fatalf("cursor should point at last returned row")
	}

	page, next = Trim(ids, 5, key)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected full last page without cursor")
	}
}
