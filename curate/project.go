package curate

import "github.com/withobsrvr/medallion-foundry/logging"

var logger = logging.New("curate")

// ProjectionConfig mirrors the relevant subset of Silver configuration
// for column projection/rename (spec.md 4.6's "Column projection/rename").
type ProjectionConfig struct {
	NaturalKeys      []string
	ChangeTimestamp  string
	Attributes       []string // mutually exclusive with ExcludeColumns
	ExcludeColumns   []string
	ColumnMapping    map[string]string
}

// Project applies spec.md 4.6's column projection/rename order of
// operations: attributes allowlist (if set), else exclude_columns
// denylist (if set), else pass-through; then column_mapping renames.
func Project(rows []Row, cfg ProjectionConfig) []Row {
	if len(rows) == 0 {
		return rows
	}

	var keep map[string]bool
	if len(cfg.Attributes) > 0 {
		keep = make(map[string]bool, len(cfg.NaturalKeys)+len(cfg.Attributes)+1)
		for _, k := range cfg.NaturalKeys {
			keep[k] = true
		}
		if cfg.ChangeTimestamp != "" {
			keep[cfg.ChangeTimestamp] = true
		}
		for _, a := range cfg.Attributes {
			keep[a] = true
		}
		for col := range keep {
			if _, present := rows[0][col]; !present {
				logger.Warn().Str("column", col).Msg("projected column not present in source")
			}
		}
	} else if len(cfg.ExcludeColumns) > 0 {
		exclude := make(map[string]bool, len(cfg.ExcludeColumns))
		for _, c := range cfg.ExcludeColumns {
			exclude[c] = true
		}
		keep = make(map[string]bool)
		for col := range rows[0] {
			if !exclude[col] {
				keep[col] = true
			}
		}
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		var projected Row
		if keep != nil {
			projected = make(Row, len(keep))
			for col := range keep {
				if v, present := r[col]; present {
					projected[col] = v
				}
			}
		} else {
			projected = r.Clone()
		}

		if len(cfg.ColumnMapping) > 0 {
			renamed := make(Row, len(projected))
			for col, v := range projected {
				if newName, ok := cfg.ColumnMapping[col]; ok {
					renamed[newName] = v
				} else {
					renamed[col] = v
				}
			}
			projected = renamed
		}
		out[i] = projected
	}
	return out
}

// CurateEvents implements spec.md 4.6's event curation: dedupe_exact only,
// no history, no deletion semantics.
func CurateEvents(rows []Row) []Row {
	return DedupeExact(rows)
}
