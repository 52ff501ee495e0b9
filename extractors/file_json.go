package extractors

import (
	"bufio"
	"fmt"
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/withobsrvr/medallion-foundry/curate"
)

// readJSON decodes a single JSON document: either an array of objects or
// one object. Uses goccy/go-json, promoted here to direct use from the
// teacher's indirect dependency, for its faster bulk-array decode path.
func readJSON(path string) ([]curate.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe any
	if err := gojson.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch t := probe.(type) {
	case []any:
		rows := make([]curate.Row, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, curate.Row(m))
			}
		}
		return rows, nil
	case map[string]any:
		return []curate.Row{curate.Row(t)}, nil
	default:
		return nil, fmt.Errorf("extractors: unsupported json root type %T", t)
	}
}

// readJSONL decodes newline-delimited JSON, one object per line.
func readJSONL(path string) ([]curate.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []curate.Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := gojson.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		rows = append(rows, curate.Row(m))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
