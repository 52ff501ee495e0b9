package extractors

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// readCSV reads a delimited file with a header row into Rows, using
// encoding/csv — stdlib, ambient; no pack repo wires a third-party CSV
// reader, and the standard library already handles quoting correctly.
func readCSV(path string, delimiter rune) ([]curate.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	var rows []curate.Row
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		row := make(curate.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
