package extractors

import (
	"fmt"

	"github.com/qax-os/excelize/v2"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// readExcel reads the first sheet of an .xlsx workbook, treating row 1
// as the header. Grounded on excelize/v2 — no pack repo uses an Excel
// library, so this one is named rather than grounded, per the "never
// fabricate, name what's missing" rule.
func readExcel(path string) ([]curate.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("extractors: excel workbook has no sheets")
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	rows := make([]curate.Row, 0, len(all)-1)
	for _, record := range all[1:] {
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
