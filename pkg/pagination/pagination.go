// Package pagination implements keyset paging over (created_at, id), newest
// first. Cursors are opaque to callers.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is the caller-facing page request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the key of the last row on the previous page.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
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

// LimitWithBuffer asks for one extra row so Trim can tell whether another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	raw, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if cursor.CreatedAt.IsZero() || cursor.ID == uuid.Nil {
		return nil, errors.New("cursor is missing its key")
	}
	return &cursor, nil
}

// Resolve normalizes the limit and decodes the cursor. A malformed cursor is
// a validation error.
func (p Params) Resolve() (int, *Cursor, error) {
	cursor, err := ParseCursor(p.Cursor)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination cursor")
	}
	return NormalizeLimit(p.Limit), cursor, nil
}

// After is a gorm scope restricting a newest-first query to rows strictly
// past the cursor. table qualifies the columns when the query joins; pass ""
// otherwise. A nil cursor leaves the query untouched.
func (c *Cursor) After(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c == nil {
			return db
		}
		prefix := ""
		if table != "" {
			prefix = table + "."
		}
		return db.Where(
			fmt.Sprintf("(%[1]screated_at < ?) OR (%[1]screated_at = ? AND %[1]sid < ?)", prefix),
			c.CreatedAt, c.CreatedAt, c.ID,
		)
	}
}

// Trim drops the look-ahead row fetched with LimitWithBuffer and returns the
// cursor for the next page, or "" when rows is the last page.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[len(rows)-1]))
}
