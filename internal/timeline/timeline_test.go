package timeline

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(kind Kind, id string, date time.Time) Entry {
	return Entry{Kind: kind, ID: id, Date: date, Item: id}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, MinLimit, ClampLimit(3))
	assert.Equal(t, MinLimit, ClampLimit(-1))
	assert.Equal(t, 25, ClampLimit(25))
	assert.Equal(t, MaxLimit, ClampLimit(500))
}

func TestMergeOrdersNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	consultations := []Entry{
		entry(KindConsultation, "c3", base.Add(3*time.Hour)),
		entry(KindConsultation, "c1", base.Add(1*time.Hour)),
	}
	orders := []Entry{
		entry(KindOrder, "o4", base.Add(4*time.Hour)),
		entry(KindOrder, "o2", base.Add(2*time.Hour)),
	}

	items, hasMore := Merge(consultations, orders, 10)
	require.Len(t, items, 4)
	assert.False(t, hasMore)
	assert.Equal(t, []string{"o4", "c3", "o2", "c1"},
		[]string{items[0].ID, items[1].ID, items[2].ID, items[3].ID})
}

func TestMergeCapsAndReportsMore(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var a, b []Entry
	for i := 9; i >= 0; i-- {
		a = append(a, entry(KindConsultation, fmt.Sprintf("c%02d", i), base.Add(time.Duration(2*i)*time.Minute)))
		b = append(b, entry(KindOrder, fmt.Sprintf("o%02d", i), base.Add(time.Duration(2*i+1)*time.Minute)))
	}

	items, hasMore := Merge(a, b, 5)
	require.Len(t, items, 5)
	assert.True(t, hasMore)
	// Newest five overall: o09, c09, o08, c08, o07
	assert.Equal(t, "o09", items[0].ID)
	assert.Equal(t, "c09", items[1].ID)
	assert.Equal(t, "o07", items[4].ID)
}

func TestMergeBreaksDateTiesByIDDescending(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	a := []Entry{entry(KindConsultation, "bbb", at)}
	b := []Entry{entry(KindOrder, "ccc", at), entry(KindOrder, "aaa", at)}

	items, hasMore := Merge(a, b, 10)
	require.Len(t, items, 3)
	assert.False(t, hasMore)
	assert.Equal(t, []string{"ccc", "bbb", "aaa"},
		[]string{items[0].ID, items[1].ID, items[2].ID})
}

func TestMergeEmptyInputs(t *testing.T) {
	items, hasMore := Merge(nil, nil, 5)
	assert.Empty(t, items)
	assert.False(t, hasMore)

	only := []Entry{entry(KindOrder, "o1", time.Now())}
	items, hasMore = Merge(nil, only, 5)
	require.Len(t, items, 1)
	assert.False(t, hasMore)
}

func TestParseCursorEmptyAnchorsAtNow(t *testing.T) {
	before := time.Now()
	cur, err := ParseCursor("")
	require.NoError(t, err)
	assert.Empty(t, cur.BeforeID)
	assert.False(t, cur.Before.Before(before))
}

func TestParseCursorBareTimestamp(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 123456789, time.UTC)

	cur, err := ParseCursor(at.Format(time.RFC3339Nano))
	require.NoError(t, err)
	assert.Empty(t, cur.BeforeID)
	assert.True(t, cur.Before.Equal(at))

	// Bare timestamps bound inclusively
	assert.True(t, cur.Admits(at, "anything"))
	assert.True(t, cur.Admits(at.Add(-time.Second), "anything"))
	assert.False(t, cur.Admits(at.Add(time.Second), "anything"))
}

func TestParseCursorInvalid(t *testing.T) {
	_, err := ParseCursor("not-a-timestamp")
	assert.Error(t, err)

	_, err = ParseCursor("also-bad~some-id")
	assert.Error(t, err)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 123456789, time.UTC)
	cur := Cursor{Before: at, BeforeID: "abc-123"}

	parsed, err := ParseCursor(cur.String())
	require.NoError(t, err)
	assert.True(t, parsed.Before.Equal(at))
	assert.Equal(t, "abc-123", parsed.BeforeID)
}

func TestCompoundCursorIsStrictOnTies(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	cur := Cursor{Before: at, BeforeID: "mmm"}

	assert.True(t, cur.Admits(at.Add(-time.Second), "zzz"))
	assert.True(t, cur.Admits(at, "aaa"), "same instant, smaller id is admitted")
	assert.False(t, cur.Admits(at, "mmm"), "the cursor row itself is excluded")
	assert.False(t, cur.Admits(at, "zzz"), "same instant, larger id is excluded")
	assert.False(t, cur.Admits(at.Add(time.Second), "aaa"))
}

func TestCursorWhere(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	cond, args := Cursor{Before: at}.Where("created_at")
	assert.Equal(t, "created_at <= ?", cond)
	require.Len(t, args, 1)

	cond, args = Cursor{Before: at, BeforeID: "x"}.Where("created_at")
	assert.Equal(t, "(created_at < ? OR (created_at = ? AND id < ?))", cond)
	require.Len(t, args, 3)
	assert.Equal(t, "x", args[2])
}

func TestNextCursor(t *testing.T) {
	assert.Empty(t, NextCursor(nil))

	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	items := []Entry{
		entry(KindConsultation, "c1", at.Add(time.Hour)),
		entry(KindOrder, "o1", at),
	}
	cur, err := ParseCursor(NextCursor(items))
	require.NoError(t, err)
	assert.True(t, cur.Before.Equal(at))
	assert.Equal(t, "o1", cur.BeforeID)
}

// fetchPage mimics the per-source database query: date-descending rows inside
// the cursor bound, at most limit+1 of them.
func fetchPage(source []Entry, cur Cursor, limit int) []Entry {
	var page []Entry
	for _, e := range source {
		if !cur.Admits(e.Date, e.ID) {
			continue
		}
		page = append(page, e)
		if len(page) == limit+1 {
			break
		}
	}
	return page
}

func TestPaginationIsExhaustiveWithTimestampTies(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Two sources sharing several identical timestamps, including ties that
	// straddle page boundaries.
	var consultations, orders []Entry
	for i := 0; i < 17; i++ {
		at := base.Add(time.Duration(i/3) * time.Minute) // clusters of equal instants
		consultations = append(consultations, entry(KindConsultation, fmt.Sprintf("c%02d", i), at))
		orders = append(orders, entry(KindOrder, fmt.Sprintf("o%02d", i), at))
	}
	desc := func(s []Entry) {
		sort.Slice(s, func(i, j int) bool {
			if !s[i].Date.Equal(s[j].Date) {
				return s[i].Date.After(s[j].Date)
			}
			return s[i].ID > s[j].ID
		})
	}
	desc(consultations)
	desc(orders)

	limit := 5
	cur := Cursor{Before: base.Add(time.Hour)} // bare timestamp, as a first request sends

	var collected []Entry
	for pages := 0; ; pages++ {
		require.Less(t, pages, 20, "pagination did not terminate")

		a := fetchPage(consultations, cur, limit)
		b := fetchPage(orders, cur, limit)
		items, hasMore := Merge(a, b, limit)
		collected = append(collected, items...)
		if !hasMore {
			break
		}

		next, err := ParseCursor(NextCursor(items))
		require.NoError(t, err)
		cur = next
	}

	// Every entry appears exactly once, in global descending order.
	require.Len(t, collected, len(consultations)+len(orders))
	seen := make(map[string]bool)
	for i, e := range collected {
		assert.False(t, seen[e.ID], "duplicate entry %s", e.ID)
		seen[e.ID] = true
		if i > 0 {
			prev := collected[i-1]
			inOrder := prev.Date.After(e.Date) || (prev.Date.Equal(e.Date) && prev.ID > e.ID)
			assert.True(t, inOrder, "entries %s and %s out of order", prev.ID, e.ID)
		}
	}
}
