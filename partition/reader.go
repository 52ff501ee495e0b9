package partition

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// ReadPartitions loads every row from the given set of partition
// directories (each expected to hold a data.parquet written by Write)
// through the shared DuckDB handle, following the same
// read_parquet()-over-database/sql pattern as extractors' file_parquet.go.
// Multiple paths are unioned, matching append_log's "all matching dt=
// partitions" semantics (spec.md 4.7).
func ReadPartitions(ctx context.Context, db *sql.DB, dirs []string) ([]curate.Row, error) {
	if db == nil {
		return nil, fmt.Errorf("partition: read requires a duckdb handle")
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	globs := make([]string, len(dirs))
	for i, d := range dirs {
		globs[i] = fmt.Sprintf("'%s/data.parquet'", strings.TrimRight(d, "/"))
	}
	query := fmt.Sprintf("SELECT * FROM read_parquet([%s], union_by_name=true)", strings.Join(globs, ", "))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []curate.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(curate.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
