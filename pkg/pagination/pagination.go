// Package pagination implements keyset paging over (created_at, id) for the
// bin and print-job listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Direction is the listing order. Newest-first listings page with Desc.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position after the last row of a page. ID is the
// row's primary key rendered as text: a bin id or a uuid.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Page can tell whether another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	payload, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.ID == "" || cursor.CreatedAt.IsZero() {
		return nil, errors.New("invalid cursor format")
	}
	return &cursor, nil
}

// Keyset orders by created_at then idColumn in dir and, when cursor is set,
// skips every row up to and including it.
func Keyset(cursor *Cursor, idColumn string, dir Direction) func(*gorm.DB) *gorm.DB {
	cmp := ">"
	if dir == Desc {
		cmp = "<"
	} else {
		dir = Asc
	}
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where(
				fmt.Sprintf("(created_at %[1]s ?) OR (created_at = ? AND %[2]s %[1]s ?)", cmp, idColumn),
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
		return db.Order("created_at " + string(dir)).Order(idColumn + " " + string(dir))
	}
}

// Page trims a buffered result set to limit rows and returns the cursor for
// the next page, or "" when rows held no extra row.
func Page[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[limit-1]))
}
