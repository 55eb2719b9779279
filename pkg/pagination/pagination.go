package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params carries a page request from a controller into a store.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (created_at, id) position of the last row a client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting when unset.
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

// Encode renders the cursor as an opaque token safe for query strings.
func (c Cursor) Encode() string {
	payload := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a token produced by Encode. An empty token is the first
// page and yields nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

// NewestFirst orders by (created_at, id) descending and, when after is set,
// keeps only rows strictly older than it.
func NewestFirst(after *Cursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if after != nil {
			// sqlite compares timestamps as text in the local zone.
			at := after.CreatedAt.In(time.Local)
			tx = tx.Where("((created_at < ?) OR (created_at = ? AND id < ?))", at, at, after.ID)
		}
		return tx.Order("created_at DESC").Order("id DESC")
	}
}

// Trim cuts a result fetched with limit+1 rows down to limit and returns the
// token for the next page, or "" when rows was the last page.
func Trim[T any](rows []T, limit int, position func(T) Cursor) ([]T, string) {
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, position(rows[limit-1]).Encode()
}
