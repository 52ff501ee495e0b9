package partition

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/model"
)

// WriteRequest bundles everything the writer needs to materialize one
// Silver (or Bronze) partition, per spec.md 4.8's write contract.
type WriteRequest struct {
	Dir             string
	Rows            []curate.Row
	Columns         []Column
	EntityKind      model.EntityKind
	HistoryMode     model.HistoryMode
	NaturalKeys     []string
	ChangeTimestamp string
	RunDate         string
	SourcePath      string
	SkipIfExists    bool
	SecondaryCSV    bool
}

// WriteResult reports what the write contract produced.
type WriteResult struct {
	Skipped   bool
	Reason    string
	RowCount  int
	DataFiles []string
}

// Write implements spec.md 4.8's partition write contract using the
// DuckDB SQL engine (the teacher's duckdb.go / transformations/*.go
// pattern of "CREATE ... AS SELECT" against a *sql.DB, generalized to
// "COPY (...) TO '...' (FORMAT PARQUET)" over the in-memory row set
// materialized into a DuckDB relation via db.ExecContext).
func Write(ctx context.Context, db *sql.DB, req WriteRequest) (WriteResult, error) {
	if req.SkipIfExists {
		if exists, err := partitionHasData(req.Dir); err != nil {
			return WriteResult{}, err
		} else if exists {
			return WriteResult{Skipped: true, Reason: "already_exists"}, nil
		}
	}

	// Row count must be computed before writing; materialize-at-write
	// semantics (spec design note 9) forbid scanning rows twice for this
	// purpose and then again for the write itself, so we count the slice
	// directly since it is already materialized in memory.
	rowCount := len(req.Rows)
	if rowCount == 0 {
		return WriteResult{Skipped: false, RowCount: 0}, nil
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return WriteResult{}, err
	}

	dataFile := "data.parquet"
	dataPath := filepath.Join(req.Dir, dataFile)

	if err := writeParquet(ctx, db, dataPath, req.Rows, req.Columns); err != nil {
		return WriteResult{}, err
	}

	dataFiles := []string{dataFile}

	if req.SecondaryCSV {
		csvFile := "data.csv"
		if err := writeCSV(filepath.Join(req.Dir, csvFile), req.Rows, req.Columns); err != nil {
			return WriteResult{}, err
		}
		dataFiles = append(dataFiles, csvFile)
	}

	meta := Metadata{
		RowCount:        rowCount,
		Columns:         req.Columns,
		EntityKind:      req.EntityKind,
		HistoryMode:     req.HistoryMode,
		NaturalKeys:     req.NaturalKeys,
		ChangeTimestamp: req.ChangeTimestamp,
		RunDate:         req.RunDate,
		SourcePath:      req.SourcePath,
	}
	if err := writeMetadata(req.Dir, meta); err != nil {
		return WriteResult{}, err
	}

	checksums, err := computeChecksums(req.Dir, dataFiles)
	if err != nil {
		return WriteResult{}, err
	}
	if err := writeChecksums(req.Dir, checksums); err != nil {
		return WriteResult{}, err
	}

	return WriteResult{RowCount: rowCount, DataFiles: dataFiles}, nil
}

func partitionHasData(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".parquet" {
			return true, nil
		}
	}
	return false, nil
}

func writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "_metadata.json"), data, 0o644)
}

// writeParquet stages req.Rows into a DuckDB temporary table via
// parameterized inserts, then issues COPY ... TO ... (FORMAT PARQUET)
// against the same connection, following the teacher's pattern of
// driving writes through SQL rather than a standalone parquet-encoding
// library.
func writeParquet(ctx context.Context, db *sql.DB, path string, rows []curate.Row, columns []Column) error {
	if db == nil {
		return fmt.Errorf("partition: nil duckdb handle")
	}

	stagingTable := "_staging_write"
	var ddl string
	for i, c := range columns {
		if i > 0 {
			ddl += ", "
		}
		ddl += fmt.Sprintf("%q %s", c.Name, sqlType(c.SQLType))
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s (%s)", stagingTable, ddl)); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := ""
	colNames := ""
	for i, c := range columns {
		if i > 0 {
			placeholders += ", "
			colNames += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		colNames += fmt.Sprintf("%q", c.Name)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", stagingTable, colNames, placeholders)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i, c := range columns {
			args[i] = row[c.Name]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY (SELECT * FROM %s) TO '%s' (FORMAT PARQUET)", stagingTable, path)
	_, err = db.ExecContext(ctx, copySQL)
	return err
}

func sqlType(hint string) string {
	if hint == "" {
		return "VARCHAR"
	}
	return hint
}
