// Package curate implements the Silver curation operators from spec.md
// 4.6: dedupe_latest (SCD1), build_history (SCD2), apply_cdc, dedupe_exact,
// event curation, and column projection/rename. All operators are pure
// transformations over a materialized slice of rows (spec design note 9:
// "lazy query execution -> materialize at defined points") rather than a
// lazy query plan, since curation output must be checksum-stable once
// written.
package curate

import (
	"fmt"
	"sort"
)

// Row is one in-flight record: an unordered map of column name to scalar
// value, per spec.md 3's Record type. Column order for output files is
// imposed separately by the partition writer from the declared schema.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func compareValues(a, b any) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as2, bs2 := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as2 < bs2:
		return -1
	case as2 > bs2:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	default:
		return 0, false
	}
}

// lexicalSortKey builds a deterministic sort key over all column names,
// for the tie-break rule in spec.md 4.6: "tie-broken on change_timestamp
// ascending, then on all columns lexically."
func lexicalSortKey(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%v", k, r[k]))
	}
	return out
}

func lexicalLess(a, b Row) bool {
	ak, bk := lexicalSortKey(a), lexicalSortKey(b)
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if ak[i] != bk[i] {
			return ak[i] < bk[i]
		}
	}
	return len(ak) < len(bk)
}

func keyOf(r Row, keys []string) string {
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("\x1f%v", r[k])
	}
	return out
}
