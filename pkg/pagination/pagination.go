// Package pagination implements keyset cursors over lists ordered by
// creation time, newest first.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many entries a page can hold.
	MaxLimit = 100
)

// Cursor marks the last entry of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor string.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor string. An empty value yields nil.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: parts[1]}, nil
}

// Before reports whether an entry sorts after the cursor in newest-first
// order, ties broken by descending id.
func (c Cursor) Before(createdAt time.Time, id string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return id < c.ID
}

// Page slices a newest-first list after cursor and returns at most limit
// entries plus the cursor of the next page, empty on the last page.
func Page[T any](items []T, cursor *Cursor, limit int, key func(T) (time.Time, string)) ([]T, string) {
	limit = NormalizeLimit(limit)
	start := 0
	if cursor != nil {
		start = len(items)
		for i, item := range items {
			createdAt, id := key(item)
			if cursor.Before(createdAt, id) {
				start = i
				break
			}
		}
	}
	end := start + limit
	if end >= len(items) {
		return items[start:], ""
	}
	createdAt, id := key(items[end-1])
	return items[start:end], EncodeCursor(Cursor{CreatedAt: createdAt, ID: id})
}
