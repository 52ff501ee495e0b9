package partition

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// writeCSV writes the secondary output format named in spec.md 4.8 step
// 6. encoding/csv is stdlib; no pack example wires a third-party CSV
// writer for plain flat output, and the format has no quoting edge case
// the standard library doesn't already handle correctly.
func writeCSV(path string, rows []curate.Row, columns []Column) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, c := range columns {
			record[i] = fmt.Sprintf("%v", row[c.Name])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
