// Package validate implements the two-tier configuration validation from
// spec.md 4.12: Structural errors block execution at load; Warnings are
// advisory and surfaced but never fatal.
package validate

import (
	"fmt"

	"github.com/withobsrvr/medallion-foundry/model"
	"github.com/withobsrvr/medallion-foundry/pipeline"
)

// Structural runs spec.md 4.12's blocking checks. A non-empty return
// should be treated as a load-time failure by the caller.
func Structural(p *pipeline.Pipeline) []string {
	var issues []string

	if p.Bronze.System == "" && p.Silver.System == "" {
		issues = append(issues, "missing system")
	}
	if p.Bronze.Entity == "" && p.Silver.Entity == "" {
		issues = append(issues, "missing entity")
	}
	if p.Bronze.TargetPath == "" {
		issues = append(issues, "bronze: missing target_path")
	}
	if p.Silver.TargetPath == "" {
		issues = append(issues, "silver: missing target_path")
	}

	issues = append(issues, structuralSource(p.Bronze)...)

	if (p.Bronze.LoadPattern == pipeline.LoadIncrementalAppend || p.Bronze.LoadPattern == pipeline.LoadCDC) &&
		p.Bronze.WatermarkColumn == "" {
		issues = append(issues, "bronze: incremental_append/cdc load_pattern requires watermark_column")
	}

	if p.Silver.DeleteMode != "" && requiresCDCOptions(p.Silver) {
		if p.Silver.CDCOptions == nil || p.Silver.CDCOptions.OperationColumn == "" {
			issues = append(issues, "silver: cdc delete_mode requires cdc_options.operation_column")
		}
	}

	if p.Silver.Model != "" && p.Silver.Model.IsCDC() && p.Bronze.LoadPattern != pipeline.LoadCDC {
		issues = append(issues, fmt.Sprintf("silver: model %q requires bronze load_pattern=cdc", p.Silver.Model))
	}

	permitsEmptyKeys := p.Silver.Model == model.PeriodicSnapshot
	if !permitsEmptyKeys {
		if len(p.Silver.NaturalKeys()) == 0 {
			issues = append(issues, "silver: missing natural_keys (or unique_columns)")
		}
		if p.Silver.ChangeTimestampColumn() == "" {
			issues = append(issues, "silver: missing change_timestamp (or last_updated_column)")
		}
	}

	if len(p.Silver.Attributes) > 0 && len(p.Silver.ExcludeColumns) > 0 {
		issues = append(issues, "silver: attributes and exclude_columns are mutually exclusive")
	}

	issues = append(issues, enumIssues(p)...)

	return issues
}

func structuralSource(b pipeline.BronzeConfig) []string {
	var issues []string
	switch b.SourceType {
	case pipeline.SourceFileCSV, pipeline.SourceFileParquet, pipeline.SourceFileJSON,
		pipeline.SourceFileJSONL, pipeline.SourceFileExcel, pipeline.SourceFileSpaceDelim:
		if b.SourcePath == "" {
			issues = append(issues, "bronze: file source missing source_path")
		}
	case pipeline.SourceFileFixedWidth:
		if b.SourcePath == "" {
			issues = append(issues, "bronze: file source missing source_path")
		}
		multiRecord := len(b.Options.RecordTypes) > 0
		if !multiRecord && (len(b.Options.Columns) == 0 || len(b.Options.Widths) == 0) {
			issues = append(issues, "bronze: fixed_width source missing columns/widths (or record_types for multi-record)")
		}
	case pipeline.SourceDatabaseMSSQL, pipeline.SourceDatabasePostgres,
		pipeline.SourceDatabaseMySQL, pipeline.SourceDatabaseDB2:
		if b.Options.ConnectionRef == "" && (b.Options.Host == "" || b.Options.Database == "") {
			issues = append(issues, "bronze: database source missing host/database (or connection_ref)")
		}
	case pipeline.SourceDBMulti:
		if b.Options.ConnectionRef == "" && (b.Options.Host == "" || len(b.Options.Entities) == 0) {
			issues = append(issues, "bronze: db_multi source missing host/entities (or connection_ref)")
		}
	}
	return issues
}

func requiresCDCOptions(s pipeline.SilverConfig) bool {
	return s.Model != "" && s.Model.IsCDC()
}

func enumIssues(p *pipeline.Pipeline) []string {
	var issues []string

	switch p.Bronze.SourceType {
	case pipeline.SourceFileCSV, pipeline.SourceFileParquet, pipeline.SourceFileFixedWidth,
		pipeline.SourceFileSpaceDelim, pipeline.SourceFileJSON, pipeline.SourceFileJSONL,
		pipeline.SourceFileExcel, pipeline.SourceDatabaseMSSQL, pipeline.SourceDatabasePostgres,
		pipeline.SourceDatabaseMySQL, pipeline.SourceDatabaseDB2, pipeline.SourceAPIRest,
		pipeline.SourceDBMulti, pipeline.SourceCustom, "":
	default:
		issues = append(issues, fmt.Sprintf("bronze: unknown source_type %q", p.Bronze.SourceType))
	}

	switch p.Bronze.LoadPattern {
	case pipeline.LoadFullSnapshot, pipeline.LoadIncrementalAppend, pipeline.LoadCDC, "":
	default:
		issues = append(issues, fmt.Sprintf("bronze: unknown load_pattern %q", p.Bronze.LoadPattern))
	}

	switch p.Silver.EntityKind {
	case model.EntityState, model.EntityEvent, "":
	default:
		issues = append(issues, fmt.Sprintf("silver: unknown entity_kind %q", p.Silver.EntityKind))
	}

	switch p.Silver.HistoryMode {
	case model.HistoryCurrentOnly, model.HistoryFullHistory, "":
	default:
		issues = append(issues, fmt.Sprintf("silver: unknown history_mode %q", p.Silver.HistoryMode))
	}

	switch p.Silver.DeleteMode {
	case model.DeleteIgnore, model.DeleteTombstone, model.DeleteHardDelete, "":
	default:
		issues = append(issues, fmt.Sprintf("silver: unknown delete_mode %q", p.Silver.DeleteMode))
	}

	return issues
}

// Warnings runs spec.md 4.12's non-blocking checks.
func Warnings(p *pipeline.Pipeline) []string {
	var warnings []string

	if p.Bronze.LoadPattern == pipeline.LoadFullSnapshot && p.Bronze.WatermarkColumn != "" {
		warnings = append(warnings, "bronze: full_snapshot load_pattern with watermark_column set has no effect")
	}

	if p.Silver.EntityKind == model.EntityEvent && p.Silver.HistoryMode == model.HistoryFullHistory {
		warnings = append(warnings, "silver: event entities do not support full_history")
	}

	if p.Silver.Model != "" && !p.Silver.Model.IsCDC() && p.Bronze.LoadPattern == pipeline.LoadCDC {
		warnings = append(warnings, "silver: non-cdc model paired with cdc bronze source; operation information will be lost")
	}

	if p.Silver.Model == model.PeriodicSnapshot && p.Bronze.LoadPattern != "" && p.Bronze.LoadPattern != pipeline.LoadFullSnapshot {
		warnings = append(warnings, "silver: periodic_snapshot with non-full-snapshot bronze; potential accumulation")
	}

	return warnings
}
