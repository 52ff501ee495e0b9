// Package pagination implements the four pagination state machines from
// spec.md 4.3 as a closed tagged union (spec design note 9: "dynamic
// dispatch -> tagged unions") rather than open inheritance, since the set
// of pagination strategies is fixed by configuration, not extensible by
// plugins.
package pagination

import (
	"strconv"
	"strings"
)

// State is implemented by each of the four pagination variants.
type State interface {
	// ShouldFetchMore reports whether another page should be requested.
	ShouldFetchMore() bool
	// BuildParams returns the per-page query params merged over base.
	BuildParams(base map[string]any) map[string]any
	// OnRecords folds in a page's records and the raw response body (for
	// cursor extraction), returning whether to continue paging.
	OnRecords(records []map[string]any, response map[string]any) bool
	// Describe renders a short summary for logging.
	Describe() string
}

// WindowPager is implemented by pagination variants whose next N sets of
// request params can be computed ahead of any response (offset/page,
// where the next param is arithmetic rather than data-dependent). Cursor
// and none pagination do not implement this, since their next params
// depend on the prior response body. An async API extractor uses this to
// prefetch a bounded window of pages concurrently while still replaying
// them through OnRecords in order, one page at a time.
type WindowPager interface {
	State
	// PeekWindow returns up to n future param sets starting at the
	// current position, without mutating state. The caller must still
	// drive OnRecords sequentially over the corresponding responses.
	PeekWindow(base map[string]any, n int) []map[string]any
}

// dottedLookup resolves a dotted path like "meta.next_cursor" into a
// nested map[string]any, returning nil if any segment is missing or not a
// map/terminal value.
func dottedLookup(m map[string]any, path string) any {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = asMap[p]
		if !ok {
			return nil
		}
	}
	return cur
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// maxRecordsGuard is embedded by every variant to honor the global
// max_records truncation rule shared across all pagination types.
type maxRecordsGuard struct {
	MaxRecords int // 0 = unlimited
	seen       int
}

// accept records up to the remaining budget, reporting the accepted
// records and whether the budget was exhausted (terminal).
func (g *maxRecordsGuard) accept(records []map[string]any) (accepted []map[string]any, exhausted bool) {
	if g.MaxRecords <= 0 {
		g.seen += len(records)
		return records, false
	}
	remaining := g.MaxRecords - g.seen
	if remaining <= 0 {
		return nil, true
	}
	if len(records) >= remaining {
		g.seen += remaining
		return records[:remaining], true
	}
	g.seen += len(records)
	return records, false
}
