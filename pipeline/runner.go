package pipeline

import (
	"context"
	"database/sql"
	"time"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/extractors"
	"github.com/withobsrvr/medallion-foundry/latedata"
	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/model"
	"github.com/withobsrvr/medallion-foundry/partition"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
	"github.com/withobsrvr/medallion-foundry/watermark"
)

var runnerLogger = logging.New("runner")

// LayerResult is the result shape shared by both Bronze and Silver,
// per spec.md 4.10's run() contract.
type LayerResult struct {
	Skipped    bool
	SkipReason string
	DryRun     bool
	RowCount   int
	Target     string
	Columns    []string
	NewCursor  string
	HasCursor  bool
}

// RunOptions mirrors spec.md 4.10's run(bronze, silver, run_date, {...}).
type RunOptions struct {
	RunDate        string
	DryRun         bool
	SkipBronze     bool
	SkipSilver     bool
	TargetOverride string
}

// RunResult is spec.md 4.10's aggregated result:
// {success, bronze, silver, elapsed_seconds, pipeline_name, error?}.
type RunResult struct {
	Success        bool
	PipelineName   string
	Bronze         LayerResult
	Silver         LayerResult
	ElapsedSeconds float64
	Error          error
}

// Runner orchestrates Bronze -> Silver for one pipeline invocation,
// grounded on the teacher's Transformer.Start/runTransformationCycle
// structure (transformer.go): config-validate/connect/extract/curate/
// write/checkpoint/stats sequencing, generalized here from "always run
// all DuckLake phases on a ticker" to "run Bronze then Silver once per
// invocation, each independently skippable, dry-run aware".
type Runner struct {
	Pipeline      *Pipeline
	Watermark     *watermark.Store
	DB            *sql.DB
	BronzeBuilder func(*Pipeline) (extractors.Extractor, error)
}

// NewRunner constructs a Runner for one pipeline definition. db is the
// shared DuckDB handle used for partition reads/writes; it may be nil
// for dry runs, which never touch storage.
func NewRunner(p *Pipeline, store *watermark.Store, db *sql.DB) *Runner {
	return &Runner{Pipeline: p, Watermark: store, DB: db}
}

// Run executes spec.md 4.10's sequencing: Bronze (unless skipped), then
// Silver against the Bronze target (unless skipped), aggregating into a
// single structured result. Errors in either layer are caught: success
// is false, the error is surfaced as a structured domain error, and the
// subsequent layer is skipped.
//
// Run does not itself run structural validation: the CLI's --check path
// gates on validate.Structural, its normal run path logs the same issues
// as warnings before calling Run, and the validate package imports
// pipeline for its *Pipeline parameter, so calling it from here would
// cycle back.
func (r *Runner) Run(ctx context.Context, opts RunOptions) RunResult {
	start := time.Now()
	result := RunResult{PipelineName: r.Pipeline.Name, Success: true}

	if !opts.SkipBronze {
		bronzeResult, err := r.runBronze(ctx, opts)
		result.Bronze = bronzeResult
		if err != nil {
			result.Success = false
			result.Error = err
			result.ElapsedSeconds = time.Since(start).Seconds()
			return result
		}
	} else {
		result.Bronze = LayerResult{Skipped: true, SkipReason: "skip_bronze"}
	}

	if !opts.SkipSilver {
		silverResult, err := r.runSilver(ctx, opts)
		result.Silver = silverResult
		if err != nil {
			result.Success = false
			result.Error = err
		}
	} else {
		result.Silver = LayerResult{Skipped: true, SkipReason: "skip_silver"}
	}

	result.ElapsedSeconds = time.Since(start).Seconds()
	return result
}

func (r *Runner) runBronze(ctx context.Context, opts RunOptions) (LayerResult, error) {
	bronze := r.Pipeline.Bronze
	target := partition.SubstitutePlaceholders(bronze.TargetPath, bronze.System, bronze.Entity, opts.RunDate)
	if opts.TargetOverride != "" {
		target = opts.TargetOverride
	}

	if opts.DryRun {
		return LayerResult{DryRun: true, Target: target}, nil
	}

	if r.BronzeBuilder == nil {
		return LayerResult{}, pipelineerr.ConfigurationError("runner: no bronze extractor builder configured")
	}
	extractor, err := r.BronzeBuilder(r.Pipeline)
	if err != nil {
		return LayerResult{}, pipelineerr.BronzeExtractionError(string(bronze.SourceType), bronze.SourcePath, string(bronze.LoadPattern), err)
	}

	fetchResult, err := extractor.FetchRecords(ctx, opts.RunDate)
	if err != nil {
		return LayerResult{}, err
	}

	rows := fetchResult.Records
	columns := columnNames(rows)

	writeReq := partition.WriteRequest{
		Dir:          target,
		Rows:         rows,
		Columns:      toPartitionColumns(columns),
		RunDate:      opts.RunDate,
		SourcePath:   bronze.SourcePath,
		SkipIfExists: bronze.SkipIfExists,
		SecondaryCSV: containsString(bronze.OutputFormats, "csv"),
	}
	writeResult, err := partition.Write(ctx, r.DB, writeReq)
	if err != nil {
		return LayerResult{}, pipelineerr.BronzeExtractionError(string(bronze.SourceType), bronze.SourcePath, string(bronze.LoadPattern), err)
	}

	if writeResult.Skipped {
		return LayerResult{Skipped: true, SkipReason: writeResult.Reason, Target: target}, nil
	}

	// Watermark persistence happens strictly after a successful write
	// with non-zero rows (spec.md 5).
	if writeResult.RowCount > 0 && fetchResult.HasCursor {
		if err := r.Watermark.Save(bronze.System, bronze.Entity, fetchResult.NewCursor); err != nil {
			runnerLogger.Warn().Err(err).Msg("failed to persist bronze watermark")
		}
	}

	return LayerResult{
		RowCount:  writeResult.RowCount,
		Target:    target,
		Columns:   columns,
		NewCursor: fetchResult.NewCursor,
		HasCursor: fetchResult.HasCursor,
	}, nil
}

func (r *Runner) runSilver(ctx context.Context, opts RunOptions) (LayerResult, error) {
	bronze := r.Pipeline.Bronze
	silver := r.Pipeline.Silver

	axes, warnings, err := model.Resolve(silver.Model, explicitAxes(silver), string(bronze.LoadPattern))
	if err != nil {
		return LayerResult{}, pipelineerr.SilverCurationError(silver.SourcePath, silver.TargetPath, silver.NaturalKeys(), string(silver.HistoryMode), err)
	}
	for _, w := range warnings {
		runnerLogger.Warn().Str("pipeline", r.Pipeline.Name).Msg(w.Message)
	}

	inputMode := partition.ResolveInputMode(silver.InputMode, bronze.InputMode, axes.EntityKind)

	sourceTarget := opts.TargetOverride
	if sourceTarget == "" {
		sourceTarget = partition.SubstitutePlaceholders(silver.SourcePath, silver.System, silver.Entity, opts.RunDate)
	}
	target := partition.SubstitutePlaceholders(silver.TargetPath, silver.System, silver.Entity, opts.RunDate)

	if opts.DryRun {
		return LayerResult{DryRun: true, Target: target}, nil
	}

	sourcePaths, err := partition.ResolveSourcePaths(sourceTarget, inputMode)
	if err != nil {
		return LayerResult{}, pipelineerr.SilverCurationError(sourceTarget, target, silver.NaturalKeys(), string(silver.HistoryMode), err)
	}
	if len(sourcePaths) == 0 {
		return LayerResult{}, pipelineerr.SourceNotFoundError(sourceTarget)
	}

	if silver.ValidateSource != "" && silver.ValidateSource != string(partition.VerifySkip) {
		for _, p := range sourcePaths {
			if err := partition.VerifyChecksums(p, partition.VerifyMode(silver.ValidateSource)); err != nil {
				return LayerResult{}, err
			}
		}
	}

	rows, err := partition.ReadPartitions(ctx, r.DB, sourcePaths)
	if err != nil {
		return LayerResult{}, pipelineerr.SilverCurationError(sourceTarget, target, silver.NaturalKeys(), string(silver.HistoryMode), err)
	}

	if silver.LateData != nil {
		classified, err := latedata.Classify(rows, silver.LateData.EventTimeColumn, time.Now(), silver.LateData.ThresholdDays, latedata.Mode(silver.LateData.Mode))
		if err != nil {
			return LayerResult{}, err
		}
		rows = classified.Rows
	}

	rows = curate.Project(rows, curate.ProjectionConfig{
		NaturalKeys:     silver.NaturalKeys(),
		ChangeTimestamp: silver.ChangeTimestampColumn(),
		Attributes:      silver.Attributes,
		ExcludeColumns:  silver.ExcludeColumns,
		ColumnMapping:   silver.ColumnMapping,
	})

	curated, err := curateRows(rows, axes, silver)
	if err != nil {
		return LayerResult{}, pipelineerr.SilverCurationError(sourceTarget, target, silver.NaturalKeys(), string(silver.HistoryMode), err)
	}

	columns := columnNames(curated)
	writeResult, err := partition.Write(ctx, r.DB, partition.WriteRequest{
		Dir:             target,
		Rows:            curated,
		Columns:         toPartitionColumns(columns),
		EntityKind:      axes.EntityKind,
		HistoryMode:     axes.HistoryMode,
		NaturalKeys:     silver.NaturalKeys(),
		ChangeTimestamp: silver.ChangeTimestampColumn(),
		RunDate:         opts.RunDate,
		SourcePath:      sourceTarget,
		SkipIfExists:    silver.SkipIfExists,
		SecondaryCSV:    containsString(silver.OutputFormats, "csv"),
	})
	if err != nil {
		return LayerResult{}, pipelineerr.SilverCurationError(sourceTarget, target, silver.NaturalKeys(), string(silver.HistoryMode), err)
	}

	if writeResult.Skipped {
		return LayerResult{Skipped: true, SkipReason: writeResult.Reason, Target: target}, nil
	}

	return LayerResult{RowCount: writeResult.RowCount, Target: target, Columns: columns}, nil
}

func curateRows(rows []curate.Row, axes model.Axes, silver SilverConfig) ([]curate.Row, error) {
	if axes.EntityKind == model.EntityEvent {
		return curate.CurateEvents(rows), nil
	}

	keys := silver.NaturalKeys()
	ts := silver.ChangeTimestampColumn()

	if axes.DeleteMode != nil {
		if silver.CDCOptions == nil {
			return nil, pipelineerr.ConfigurationError("silver: cdc delete_mode requires cdc_options")
		}
		return curate.ApplyCDC(rows, keys, ts, *axes.DeleteMode, curate.CDCOptions{
			OperationColumn: silver.CDCOptions.OperationColumn,
			InsertCode:      silver.CDCOptions.InsertCode,
			UpdateCode:      silver.CDCOptions.UpdateCode,
			DeleteCode:      silver.CDCOptions.DeleteCode,
		})
	}

	if axes.HistoryMode == model.HistoryFullHistory {
		return curate.BuildHistory(rows, keys, ts), nil
	}
	return curate.DedupeLatest(rows, keys, ts), nil
}

func explicitAxes(s SilverConfig) model.Explicit {
	var e model.Explicit
	if s.EntityKind != "" {
		k := s.EntityKind
		e.EntityKind = &k
	}
	if s.HistoryMode != "" {
		h := s.HistoryMode
		e.HistoryMode = &h
	}
	if s.InputMode != "" {
		i := s.InputMode
		e.InputMode = &i
	}
	if s.DeleteMode != "" {
		d := s.DeleteMode
		e.DeleteMode = &d
	}
	return e
}

func columnNames(rows []curate.Row) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

func toPartitionColumns(names []string) []partition.Column {
	out := make([]partition.Column, len(names))
	for i, n := range names {
		out[i] = partition.Column{Name: n, SQLType: "VARCHAR", Nullable: true}
	}
	return out
}

func containsString(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}
