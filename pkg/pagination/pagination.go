// Package pagination implements the opaque cursor scheme used by list
// endpoints such as the owner's wishlist listing. Cursors encode the
// created_at timestamp and row id of the last item served, so pages
// stay stable while new wishlists are being created.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit applies when the client sends no limit.
	DefaultLimit = 25
	// MaxLimit caps the page size regardless of what the client asks for.
	MaxLimit = 100
)

// Params carries the raw pagination inputs taken from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the decoded position: the creation time and id of the last
// row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a client-supplied limit into [1, MaxLimit],
// substituting DefaultLimit for zero or negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer adds one row past the normalized limit so repos can
// tell whether another page exists without a second query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a cursor into the opaque token handed to
// clients.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a client token back into a cursor. An empty or
// blank token means "from the start" and yields nil without error.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	ts, rawID, found := strings.Cut(string(decoded), "|")
	if !found {
		return nil, fmt.Errorf("invalid cursor format")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}
