package extractors

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
)

// readFixedWidthSingleRecord reads each line as positional slices per
// spec.md 4.5.4's single-record mode: columns (names) and widths
// (character widths).
func readFixedWidthSingleRecord(path string, columns []string, widths []int) ([]curate.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []curate.Row
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := sliceFixedWidth(line, columns, widths)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func sliceFixedWidth(line string, columns []string, widths []int) (curate.Row, error) {
	row := make(curate.Row, len(columns))
	pos := 0
	for i, w := range widths {
		if pos+w > len(line) {
			w = len(line) - pos
			if w < 0 {
				w = 0
			}
		}
		row[columns[i]] = strings.TrimSpace(line[pos : pos+w])
		pos += w
	}
	return row, nil
}

// readFixedWidthMultiRecord implements spec.md 4.5.4's parent/child
// multi-record mode. Lines are scanned one at a time; the record type is
// read from record_type_position, the record-type field is removed from
// the line, and the remaining characters are sliced by the type's widths;
// the parsing behavior for each type is determined by its declared role
// (parent/child/skip).
func readFixedWidthMultiRecord(path string, cfg FileConfig) ([]curate.Row, error) {
	typeSpecs, err := indexRecordTypes(cfg.RecordTypes)
	if err != nil {
		return nil, err
	}

	outputMode := cfg.OutputMode
	if outputMode == "" {
		outputMode = "flatten"
	}
	if outputMode == "flatten" {
		hasParent, hasChild := false, false
		for _, spec := range cfg.RecordTypes {
			if spec.Role == "parent" {
				hasParent = true
			}
			if spec.Role == "child" {
				hasChild = true
			}
		}
		if !hasParent || !hasChild {
			return nil, pipelineerr.New(pipelineerr.KindConfiguration,
				"fixed_width: flatten output_mode requires at least one parent and one child role")
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	typeLen := cfg.RecordTypeLength
	if typeLen <= 0 {
		typeLen = 1
	}
	pos := cfg.RecordTypePosition

	var rows []curate.Row
	var currentParent curate.Row
	haveParent := false
	lineNum := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if pos+typeLen > len(line) {
			continue
		}
		recordType := line[pos : pos+typeLen]
		fields := line[:pos] + line[pos+typeLen:]

		spec, ok := typeSpecs[recordType]
		if !ok {
			continue // unknown record types are silently skipped
		}

		switch spec.Role {
		case "skip":
			continue

		case "parent":
			parentRow, err := sliceFixedWidth(fields, spec.Columns, spec.Widths)
			if err != nil {
				return nil, err
			}
			currentParent = parentRow
			haveParent = true
			if outputMode == "parent_only" {
				rows = append(rows, parentRow)
			}

		case "child":
			if !haveParent {
				return nil, pipelineerr.New(pipelineerr.KindConfiguration,
					fmt.Sprintf("fixed_width: child record at line %d before any parent", lineNum))
			}
			childRow, err := sliceFixedWidth(fields, spec.Columns, spec.Widths)
			if err != nil {
				return nil, err
			}
			switch outputMode {
			case "child_only":
				rows = append(rows, childRow)
			case "parent_only":
				// parent already emitted once; children contribute nothing
			default: // flatten
				combined := make(curate.Row, len(currentParent)+len(childRow))
				for k, v := range currentParent {
					combined[k] = v
				}
				for k, v := range childRow {
					combined[k] = v
				}
				rows = append(rows, combined)
			}

		default:
			return nil, pipelineerr.New(pipelineerr.KindConfiguration,
				fmt.Sprintf("fixed_width: unknown role %q for record type %q", spec.Role, recordType))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func indexRecordTypes(specs []RecordTypeSpec) (map[string]RecordTypeSpec, error) {
	out := make(map[string]RecordTypeSpec, len(specs))
	for _, s := range specs {
		if _, exists := out[s.Type]; exists {
			return nil, pipelineerr.New(pipelineerr.KindConfiguration,
				fmt.Sprintf("fixed_width: duplicate record type literal %q", s.Type))
		}
		switch s.Role {
		case "parent", "child", "skip":
		default:
			return nil, pipelineerr.New(pipelineerr.KindConfiguration,
				fmt.Sprintf("fixed_width: unknown role %q for record type %q", s.Role, s.Type))
		}
		out[s.Type] = s
	}
	return out, nil
}
