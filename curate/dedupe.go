package curate

import (
	"fmt"
	"sort"
)

// DedupeLatest implements spec.md 4.6's dedupe_latest(rows, keys, ts):
// for each combination of keys, emit the single row with the maximum ts.
// Ties are broken by first-seen ordering in the input.
func DedupeLatest(rows []Row, keys []string, ts string) []Row {
	type slot struct {
		row   Row
		index int
	}
	best := make(map[string]slot, len(rows))
	order := make([]string, 0, len(rows))

	for i, r := range rows {
		k := keyOf(r, keys)
		cur, ok := best[k]
		if !ok {
			best[k] = slot{row: r, index: i}
			order = append(order, k)
			continue
		}
		if compareValues(r[ts], cur.row[ts]) > 0 {
			best[k] = slot{row: r, index: cur.index}
		}
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		out = append(out, best[k].row)
	}
	return out
}

// DedupeExact implements spec.md 4.6's dedupe_exact(rows): emit distinct
// rows across all columns, preserving first-seen order.
func DedupeExact(rows []Row) []Row {
	seen := make(map[string]bool, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		k := exactKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func exactKey(r Row) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k + "\x1f"
		out += fmt.Sprintf("%v", r[k])
		out += "\x1e"
	}
	return out
}
