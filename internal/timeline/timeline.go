// Package timeline merges independently fetched, date-descending entry
// sequences into a single capped feed with cursor continuation. It is pure
// and knows nothing about the database or the concrete entity types.
package timeline

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the entry types merged into a feed.
type Kind string

const (
	KindConsultation Kind = "consultation"
	KindOrder        Kind = "order"
)

// Entry is one item of a patient's clinical feed.
type Entry struct {
	Kind Kind        `json:"kind"`
	ID   string      `json:"id"`
	Date time.Time   `json:"date"`
	Item interface{} `json:"item"`
}

// DefaultLimit is the page size used when the caller does not supply one.
const (
	DefaultLimit = 20
	MinLimit     = 10
	MaxLimit     = 50
)

// ClampLimit normalizes a requested page size into the supported bounds.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// before reports whether a sorts ahead of b in the feed: newest first,
// date ties broken by id descending. The tie-break must agree with the
// cursor comparison or pages would skip or repeat same-instant entries.
func before(a, b Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.ID > b.ID
}

// Merge combines two date-descending entry slices into one feed capped at
// limit entries, and reports whether anything remained beyond the cap.
func Merge(a, b []Entry, limit int) (items []Entry, hasMore bool) {
	items = make([]Entry, 0, limit)
	i, j := 0, 0
	for len(items) < limit && (i < len(a) || j < len(b)) {
		switch {
		case i >= len(a):
			items = append(items, b[j])
			j++
		case j >= len(b):
			items = append(items, a[i])
			i++
		case before(a[i], b[j]):
			items = append(items, a[i])
			i++
		default:
			items = append(items, b[j])
			j++
		}
	}
	return items, i < len(a) || j < len(b)
}

// Cursor is an exclusive upper bound on (date, id). A cursor without an id
// (a bare timestamp, as the first request sends) bounds by date inclusively;
// a compound cursor compares strictly so same-instant entries neither skip
// nor duplicate across pages.
type Cursor struct {
	Before   time.Time
	BeforeID string
}

const cursorSeparator = "~"

// ParseCursor decodes a cursor string. Empty input yields a cursor anchored
// at now. Accepted forms: "<RFC3339Nano>" and "<RFC3339Nano>~<id>".
func ParseCursor(raw string) (Cursor, error) {
	if raw == "" {
		return Cursor{Before: time.Now()}, nil
	}
	ts, id := raw, ""
	if idx := strings.Index(raw, cursorSeparator); idx >= 0 {
		ts, id = raw[:idx], raw[idx+1:]
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor timestamp %q: %w", ts, err)
	}
	return Cursor{Before: t, BeforeID: id}, nil
}

// String encodes the cursor for the wire.
func (c Cursor) String() string {
	if c.BeforeID == "" {
		return c.Before.UTC().Format(time.RFC3339Nano)
	}
	return c.Before.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.BeforeID
}

// Admits reports whether an entry at (date, id) falls inside the cursor's
// bound. Mirrors the SQL produced by Where.
func (c Cursor) Admits(date time.Time, id string) bool {
	if c.BeforeID == "" {
		return !date.After(c.Before)
	}
	if date.Before(c.Before) {
		return true
	}
	return date.Equal(c.Before) && id < c.BeforeID
}

// Where returns a SQL condition and its arguments selecting rows inside the
// cursor's bound, with dateColumn holding the feed date.
func (c Cursor) Where(dateColumn string) (string, []interface{}) {
	if c.BeforeID == "" {
		return dateColumn + " <= ?", []interface{}{c.Before}
	}
	return "(" + dateColumn + " < ? OR (" + dateColumn + " = ? AND id < ?))",
		[]interface{}{c.Before, c.Before, c.BeforeID}
}

// NextCursor returns the continuation cursor after a returned page, or the
// empty string when the page is empty.
func NextCursor(items []Entry) string {
	if len(items) == 0 {
		return ""
	}
	last := items[len(items)-1]
	return Cursor{Before: last.Date, BeforeID: last.ID}.String()
}
