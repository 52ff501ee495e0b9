package curate

import "sort"

// BuildHistory implements spec.md 4.6's build_history(rows, keys, ts) —
// SCD Type 2. For each key-group ordered by ts ascending, emits each
// version with effective_from = ts and effective_to = the next version's
// ts (null for the last), is_current = 1 only on the last version.
//
// Invariants (spec.md 8): exactly one is_current row per key; effective_from
// non-decreasing within a key; effective_to equals the next row's
// effective_from where present; output row count equals input row count.
func BuildHistory(rows []Row, keys []string, ts string) []Row {
	groups := make(map[string][]Row)
	order := make([]string, 0)
	for _, r := range rows {
		k := keyOf(r, keys)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]Row, 0, len(rows))
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			cmp := compareValues(group[i][ts], group[j][ts])
			if cmp != 0 {
				return cmp < 0
			}
			return lexicalLess(group[i], group[j])
		})

		for i, r := range group {
			versioned := r.Clone()
			versioned["effective_from"] = r[ts]
			if i+1 < len(group) {
				versioned["effective_to"] = group[i+1][ts]
				versioned["is_current"] = 0
			} else {
				versioned["effective_to"] = nil
				versioned["is_current"] = 1
			}
			out = append(out, versioned)
		}
	}
	return out
}
