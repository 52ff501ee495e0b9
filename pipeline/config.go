// Package pipeline holds the declarative pipeline configuration schema
// and the Runner that orchestrates Bronze -> Silver for one invocation,
// per spec.md 3 and 4.10. Configuration is parsed from YAML via
// gopkg.in/yaml.v3, the same library the teacher repo's config.go uses.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/withobsrvr/medallion-foundry/model"
)

type SourceType string

const (
	SourceFileCSV           SourceType = "file_csv"
	SourceFileParquet       SourceType = "file_parquet"
	SourceFileFixedWidth    SourceType = "file_fixed_width"
	SourceFileSpaceDelim    SourceType = "file_space_delimited"
	SourceFileJSON          SourceType = "file_json"
	SourceFileJSONL         SourceType = "file_jsonl"
	SourceFileExcel         SourceType = "file_excel"
	SourceDatabaseMSSQL     SourceType = "database_mssql"
	SourceDatabasePostgres  SourceType = "database_postgres"
	SourceDatabaseMySQL     SourceType = "database_mysql"
	SourceDatabaseDB2       SourceType = "database_db2"
	SourceAPIRest           SourceType = "api_rest"
	SourceDBMulti           SourceType = "db_multi"
	SourceCustom            SourceType = "custom"
)

type LoadPattern string

const (
	LoadFullSnapshot      LoadPattern = "full_snapshot"
	LoadIncrementalAppend LoadPattern = "incremental_append"
	LoadCDC               LoadPattern = "cdc"
)

// PaginationConfig is the raw YAML shape of a source's pagination block,
// resolved into a pagination.State by buildPager in extractor_factory.go.
type PaginationConfig struct {
	Type          string `yaml:"type"` // none|offset|page|cursor
	OffsetParam   string `yaml:"offset_param"`
	LimitParam    string `yaml:"limit_param"`
	PageParam     string `yaml:"page_param"`
	PageSizeParam string `yaml:"page_size_param"`
	PageSize      int    `yaml:"page_size"`
	MaxPages      int    `yaml:"max_pages"`
	CursorParam   string `yaml:"cursor_param"`
	CursorPath    string `yaml:"cursor_path"`
	MaxRecords    int    `yaml:"max_records"`
}

// RateLimitConfig mirrors spec.md 4.1's per-source rate_limit block.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst float64 `yaml:"burst"`
}

// RetryConfig mirrors spec.md 4.1's retry policy block.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	BaseDelaySeconds  float64 `yaml:"base_delay_seconds"`
	MaxDelaySeconds   float64 `yaml:"max_delay_seconds"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	Jitter            float64 `yaml:"jitter"`
}

// BreakerConfig mirrors spec.md 4.1's circuit breaker block.
type BreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	CooldownSeconds  float64 `yaml:"cooldown_seconds"`
	HalfOpenMaxCalls int     `yaml:"half_open_max_calls"`
}

// RecordTypeConfig is one entry in a multi-record fixed-width source's
// record_types[] array (spec.md 4.5.4).
type RecordTypeConfig struct {
	Type    string   `yaml:"type"`
	Role    string   `yaml:"role"` // parent|child|skip
	Columns []string `yaml:"columns"`
	Widths  []int    `yaml:"widths"`
}

// Options is the source-type-specific bag from spec.md 3. Only the
// fields relevant to the configured source_type are populated; unused
// fields are simply left at their zero value.
type Options struct {
	// api_rest
	BaseURL        string            `yaml:"base_url"`
	Endpoint       string            `yaml:"endpoint"`
	AuthType       string            `yaml:"auth_type"`
	AuthTokenEnv   string            `yaml:"auth_token_env"`
	AuthUserEnv    string            `yaml:"auth_user_env"`
	AuthPassEnv    string            `yaml:"auth_pass_env"`
	Headers        map[string]string `yaml:"headers"`
	Params         map[string]any    `yaml:"params"`
	DataPath       string            `yaml:"data_path"`
	CursorField    string            `yaml:"cursor_field"`
	Pagination     *PaginationConfig `yaml:"pagination"`
	Retry          *RetryConfig      `yaml:"retry"`
	RateLimit      *RateLimitConfig  `yaml:"rate_limit"`
	Breaker        *BreakerConfig    `yaml:"breaker"`
	PoolConnections int              `yaml:"pool_connections"`
	PoolMaxSize     int              `yaml:"pool_maxsize"`
	PoolBlock       bool             `yaml:"pool_block"`
	Async           bool             `yaml:"async"`
	MaxConcurrency  int              `yaml:"max_concurrency"`
	TimeoutSeconds  int              `yaml:"timeout_seconds"`

	// database_*
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	Schema             string `yaml:"schema"`
	Table              string `yaml:"table"`
	ConnectionRef      string `yaml:"connection_ref"`
	ConnStrEnv         string `yaml:"conn_str_env"`
	BaseQuery          string `yaml:"base_query"`
	IncrementalEnabled bool   `yaml:"incremental_enabled"`
	CursorColumn       string `yaml:"cursor_column"`
	CursorType         string `yaml:"cursor_type"`
	FetchBatchSize     int    `yaml:"fetch_batch_size"`

	// db_multi
	Entities        []DBMultiEntity `yaml:"entities"`
	ParallelWorkers int             `yaml:"parallel_workers"`

	// file_*
	Delimiter          string             `yaml:"delimiter"`
	Columns            []string           `yaml:"columns"`
	Widths             []int              `yaml:"widths"`
	RecordTypePosition int                `yaml:"record_type_position"`
	RecordTypeLength   int                `yaml:"record_type_length"`
	RecordTypes        []RecordTypeConfig `yaml:"record_types"`
	OutputMode         string             `yaml:"output_mode"` // flatten|parent_only|child_only

	// custom
	Implementation string `yaml:"implementation"`
}

// DBMultiEntity is one entry in db_multi's entities[] (spec.md 4.5.3).
type DBMultiEntity struct {
	Name     string          `yaml:"name"`
	Database string          `yaml:"database"`
	Schema   string          `yaml:"schema"`
	Table    string          `yaml:"table"`
	Query    string          `yaml:"query"`
	Load     DBMultiLoadSpec `yaml:"load"`
}

type DBMultiLoadSpec struct {
	Mode      string `yaml:"mode"` // snapshot|incremental_append
	Watermark string `yaml:"watermark"`
}

// BronzeConfig is spec.md 3's pipeline configuration.
type BronzeConfig struct {
	System          string      `yaml:"system"`
	Entity          string      `yaml:"entity"`
	SourceType      SourceType  `yaml:"source_type"`
	LoadPattern     LoadPattern `yaml:"load_pattern"`
	WatermarkColumn string      `yaml:"watermark_column"`
	SourcePath      string      `yaml:"source_path"`
	TargetPath      string      `yaml:"target_path"`
	Options         Options     `yaml:"options"`
	InputMode       model.InputMode `yaml:"input_mode"`
	SkipIfExists    bool        `yaml:"skip_if_exists"`
	OutputFormats   []string    `yaml:"output_formats"`

	// RateLimitRPS is the run-level fallback in spec.md 4.1's precedence
	// chain (per-source rate_limit.rps -> this -> env var). A pointer
	// distinguishes "unset" from an explicit 0.
	RateLimitRPS *float64 `yaml:"rate_limit_rps"`
}

// SilverConfig is spec.md 3's Silver configuration.
type SilverConfig struct {
	System          string             `yaml:"system"`
	Entity          string             `yaml:"entity"`
	SourcePath      string             `yaml:"source_path"`
	TargetPath      string             `yaml:"target_path"`
	NaturalKeys     []string           `yaml:"natural_keys"`
	UniqueColumns   []string           `yaml:"unique_columns"`    // synonym, open question 9
	ChangeTimestamp string             `yaml:"change_timestamp"`
	LastUpdatedCol  string             `yaml:"last_updated_column"` // synonym, open question 9
	Attributes      []string           `yaml:"attributes"`
	ExcludeColumns  []string           `yaml:"exclude_columns"`
	ColumnMapping   map[string]string  `yaml:"column_mapping"`
	EntityKind      model.EntityKind   `yaml:"entity_kind"`
	HistoryMode     model.HistoryMode  `yaml:"history_mode"`
	DeleteMode      model.DeleteMode   `yaml:"delete_mode"`
	Model           model.Preset       `yaml:"model"`
	InputMode       model.InputMode    `yaml:"input_mode"`
	CDCOptions      *CDCOptionsConfig  `yaml:"cdc_options"`
	SkipIfExists    bool               `yaml:"skip_if_exists"`
	OutputFormats   []string           `yaml:"output_formats"`
	ValidateSource  string             `yaml:"validate_source"` // skip|warn|strict
	LateData        *LateDataConfig    `yaml:"late_data"`

	// normalized representation populated by Normalize(); never read from
	// YAML directly by downstream code.
	resolvedNaturalKeys     []string
	resolvedChangeTimestamp string
}

type CDCOptionsConfig struct {
	OperationColumn string `yaml:"operation_column"`
	InsertCode      string `yaml:"insert_code"`
	UpdateCode      string `yaml:"update_code"`
	DeleteCode      string `yaml:"delete_code"`
}

type LateDataConfig struct {
	EventTimeColumn string `yaml:"event_time_column"`
	ThresholdDays   int    `yaml:"threshold_days"`
	Mode            string `yaml:"mode"` // allow|warn|reject|quarantine
}

// Pipeline bundles one Bronze and its corresponding Silver configuration
// under a shared pipeline name.
type Pipeline struct {
	Name   string        `yaml:"name"`
	Bronze BronzeConfig  `yaml:"bronze"`
	Silver SilverConfig  `yaml:"silver"`
}

// Normalize resolves the natural_keys/unique_columns and
// change_timestamp/last_updated_column YAML synonyms (spec.md 9's first
// Open Question) into a single internal representation. NaturalKeys()
// and ChangeTimestampColumn() are the only supported accessors downstream
// code should use.
func (s *SilverConfig) Normalize() {
	switch {
	case len(s.NaturalKeys) > 0:
		s.resolvedNaturalKeys = s.NaturalKeys
	case len(s.UniqueColumns) > 0:
		s.resolvedNaturalKeys = s.UniqueColumns
	default:
		s.resolvedNaturalKeys = nil
	}

	switch {
	case s.ChangeTimestamp != "":
		s.resolvedChangeTimestamp = s.ChangeTimestamp
	case s.LastUpdatedCol != "":
		s.resolvedChangeTimestamp = s.LastUpdatedCol
	default:
		s.resolvedChangeTimestamp = ""
	}
}

func (s *SilverConfig) NaturalKeys() []string         { return s.resolvedNaturalKeys }
func (s *SilverConfig) ChangeTimestampColumn() string { return s.resolvedChangeTimestamp }

// Load reads and parses a single pipeline YAML file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read config %s: %w", path, err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("pipeline: parse config %s: %w", path, err)
	}
	p.Silver.Normalize()
	return &p, nil
}

// LoadDir discovers and parses every *.yaml/*.yml pipeline definition in
// a directory, for the CLI's --list and bulk-run modes.
func LoadDir(dir string) ([]*Pipeline, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read dir %s: %w", dir, err)
	}
	var out []*Pipeline
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		p, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
