package curate

import (
	"sort"

	"github.com/withobsrvr/medallion-foundry/model"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
)

// CDCOptions mirrors spec.md 3's cdc_options bag.
type CDCOptions struct {
	OperationColumn string
	InsertCode      string
	UpdateCode      string
	DeleteCode      string
}

func (o CDCOptions) deleteCode() string {
	if o.DeleteCode == "" {
		return "D"
	}
	return o.DeleteCode
}

// ApplyCDC implements spec.md 4.6's apply_cdc(rows, keys, ts, delete_mode,
// cdc_options), required whenever Bronze load_pattern = cdc.
//
// For each key, the row with the maximum ts is kept unless its operation
// is the configured delete code, in which case delete_mode decides:
//   - ignore / hard_delete: drop the row entirely, drop the operation column.
//   - tombstone: keep the row, attach _deleted = true, drop the operation column.
//
// hard_delete and ignore differ only at Silver merge time (outside this
// operator's scope) — the in-memory transform is identical.
func ApplyCDC(rows []Row, keys []string, ts string, deleteMode model.DeleteMode, opts CDCOptions) ([]Row, error) {
	if opts.OperationColumn == "" {
		return nil, pipelineerr.New(pipelineerr.KindConfiguration, "apply_cdc: operation_column is not configured")
	}

	groups := make(map[string][]Row)
	order := make([]string, 0)
	for _, r := range rows {
		if _, present := r[opts.OperationColumn]; !present {
			return nil, pipelineerr.New(pipelineerr.KindConfiguration,
				"apply_cdc: operation_column "+opts.OperationColumn+" not present in dataset").
				WithDetail("operation_column", opts.OperationColumn)
		}
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
		latest := group[len(group)-1]

		op, _ := latest[opts.OperationColumn].(string)
		if op != opts.deleteCode() {
			row := latest.Clone()
			delete(row, opts.OperationColumn)
			if deleteMode == model.DeleteTombstone {
				row["_deleted"] = false
			}
			out = append(out, row)
			continue
		}

		switch deleteMode {
		case model.DeleteIgnore, model.DeleteHardDelete:
			continue
		case model.DeleteTombstone:
			row := latest.Clone()
			delete(row, opts.OperationColumn)
			row["_deleted"] = true
			out = append(out, row)
		default:
			return nil, pipelineerr.New(pipelineerr.KindConfiguration, "apply_cdc: unknown delete_mode").
				WithDetail("delete_mode", string(deleteMode))
		}
	}
	return out, nil
}
