package partition

import "github.com/withobsrvr/medallion-foundry/model"

// Column describes one output column, per spec.md 6's _metadata.json schema.
type Column struct {
	Name     string `json:"name"`
	SQLType  string `json:"sql_type"`
	Nullable bool   `json:"nullable"`
}

// Metadata is the canonical _metadata.json shape from spec.md 6.
type Metadata struct {
	RowCount        int             `json:"row_count"`
	Columns         []Column        `json:"columns"`
	EntityKind      model.EntityKind  `json:"entity_kind"`
	HistoryMode     model.HistoryMode `json:"history_mode"`
	NaturalKeys     []string        `json:"natural_keys"`
	ChangeTimestamp string          `json:"change_timestamp"`
	RunDate         string          `json:"run_date"`
	SourcePath      string          `json:"source_path"`
	PartitionBy     []string        `json:"partition_by,omitempty"`
}

// FileChecksum is one entry in _checksums.json's files array.
type FileChecksum struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// Checksums is the canonical _checksums.json shape from spec.md 6.
type Checksums struct {
	Files []FileChecksum `json:"files"`
}
