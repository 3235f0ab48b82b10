package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{"zero takes default", 0, DefaultLimit},
		{"negative takes default", -3, DefaultLimit},
		{"over cap clamps", MaxLimit + 50, MaxLimit},
		{"in range passes", 10, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLimit(tc.in); got != tc.want {
				t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC), ID: uuid.New()}

	parsed, err := ParseCursor(EncodeCursor(orig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(orig.CreatedAt) || parsed.ID != orig.ID {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, orig)
	}
}

func TestParseCursorBlankMeansStart(t *testing.T) {
	parsed, err := ParseCursor("   ")
	if err != nil {
		t.Fatalf("parse blank: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor, got %+v", parsed)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}
