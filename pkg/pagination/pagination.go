package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for any cursor that was not produced by Encode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the (created_at, id) keyset position of the last row on a page.
// Pages are ordered newest first, so the next page holds rows strictly older
// than the cursor, with id breaking ties on equal timestamps.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

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

// FetchLimit asks the store for one extra row so Trim can tell whether
// another page exists.
func FetchLimit(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts rows fetched with FetchLimit down to the page size and returns
// the cursor of the last kept row when more rows remain.
func Trim[T any](rows []T, limit int, position func(T) Cursor) ([]T, *Cursor) {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return rows, nil
	}
	page := rows[:size]
	next := position(page[size-1])
	return page, &next
}

// Encode renders the cursor as an opaque, query-string safe token.
func (c Cursor) Encode() string {
	payload := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Parse decodes a token from Encode. A blank token yields a nil cursor.
func Parse(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	stamp, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}
