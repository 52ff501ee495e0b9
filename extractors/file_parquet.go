package extractors

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// readParquet drives a read_parquet() SQL scan through the shared DuckDB
// handle, grounded on the teacher's DuckDB-as-engine pattern
// (duckdb.go/transformations/*.go) — a database/sql read rather than a
// standalone parquet row-reader library.
func readParquet(ctx context.Context, db *sql.DB, path string) ([]curate.Row, error) {
	if db == nil {
		return nil, fmt.Errorf("extractors: parquet source requires a duckdb handle")
	}

	query := fmt.Sprintf("SELECT * FROM read_parquet('%s')", path)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, _, err := streamRows(rows, "", 0)
	return out, err
}
