package pipeline

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/withobsrvr/medallion-foundry/connections"
	"github.com/withobsrvr/medallion-foundry/extractors"
	"github.com/withobsrvr/medallion-foundry/health"
	"github.com/withobsrvr/medallion-foundry/pagination"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
	"github.com/withobsrvr/medallion-foundry/resilience"
	"github.com/withobsrvr/medallion-foundry/watermark"
)

// envRPSVarFor returns the environment variable spec.md 6 names as the
// final fallback in the rate-limit precedence chain, keyed by source
// category (api_rest gets BRONZE_API_RPS; every database_* and db_multi
// source shares BRONZE_DB_RPS).
func envRPSVarFor(st SourceType) string {
	if st == SourceAPIRest {
		return "BRONZE_API_RPS"
	}
	return "BRONZE_DB_RPS"
}

func envFloat(name string) float64 {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// BuildExtractor translates one Bronze configuration's source_type and
// options bag into the matching extractors.Extractor, per spec.md 4.5.
// This is the glue between the declarative YAML schema and the
// extractors package's own format-specific config structs; conns
// supplies already-declared named connections, store is the shared
// watermark store, and duck is the DuckDB handle used to scan
// file_parquet sources (the same handle the runner writes partitions
// through).
func BuildExtractor(b BronzeConfig, conns *connections.Registry, store *watermark.Store, duck *sql.DB) (extractors.Extractor, error) {
	base := extractors.BaseExtractor{System: b.System, Entity: b.Entity, Store: store}

	switch b.SourceType {
	case SourceAPIRest:
		return buildAPIExtractor(b, base, conns)

	case SourceDatabasePostgres, SourceDatabaseMySQL, SourceDatabaseMSSQL, SourceDatabaseDB2:
		return buildDBExtractor(b, base, conns)

	case SourceDBMulti:
		return buildDBMultiExtractor(b, conns, store)

	case SourceFileCSV, SourceFileParquet, SourceFileFixedWidth, SourceFileSpaceDelim,
		SourceFileJSON, SourceFileJSONL, SourceFileExcel:
		return buildFileExtractor(b, base, duck)

	case SourceCustom:
		return extractors.NewCustom(b.Options.Implementation)

	default:
		return nil, pipelineerr.ConfigurationError(fmt.Sprintf("pipeline: unknown source_type %q", b.SourceType))
	}
}

// buildEnvelope assembles the retry/breaker/rate-limit stack for one
// source, per spec.md 4.1. component and breakerKey identify the
// process-scoped breaker (resilience.GetOrCreateBreaker); runLevelRPS is
// the pipeline's rate_limit_rps fallback and envRPSVar names the
// category's environment variable (BRONZE_API_RPS/BRONZE_DB_RPS),
// completing the per-source -> run-level -> environment precedence
// chain resilience.Resolve implements.
func buildEnvelope(component, breakerKey string, opts Options, runLevelRPS *float64, envRPSVar string) resilience.Envelope {
	policy := resilience.DefaultRetryPolicy()
	if opts.Retry != nil {
		policy = resilience.RetryPolicy{
			MaxAttempts:       opts.Retry.MaxAttempts,
			BaseDelay:         time.Duration(opts.Retry.BaseDelaySeconds * float64(time.Second)),
			MaxDelay:          time.Duration(opts.Retry.MaxDelaySeconds * float64(time.Second)),
			BackoffMultiplier: opts.Retry.BackoffMultiplier,
			Jitter:            opts.Retry.Jitter,
		}
	}

	var sourceRPS, sourceBurst *float64
	if opts.RateLimit != nil && opts.RateLimit.RPS > 0 {
		rps := opts.RateLimit.RPS
		sourceRPS = &rps
		if opts.RateLimit.Burst > 0 {
			burst := opts.RateLimit.Burst
			sourceBurst = &burst
		}
	}
	var limiter *resilience.RateLimiter
	if cfg := resilience.Resolve(sourceRPS, sourceBurst, runLevelRPS, envFloat(envRPSVar)); cfg != nil {
		limiter = resilience.NewRateLimiter(cfg.RPS, cfg.Burst)
	}

	failureThreshold := 5
	cooldown := 30 * time.Second
	halfOpenMaxCalls := 1
	if opts.Breaker != nil {
		if opts.Breaker.FailureThreshold > 0 {
			failureThreshold = opts.Breaker.FailureThreshold
		}
		if opts.Breaker.CooldownSeconds > 0 {
			cooldown = time.Duration(opts.Breaker.CooldownSeconds * float64(time.Second))
		}
		if opts.Breaker.HalfOpenMaxCalls > 0 {
			halfOpenMaxCalls = opts.Breaker.HalfOpenMaxCalls
		}
	}
	breaker := resilience.GetOrCreateBreaker(component, breakerKey, failureThreshold, cooldown, halfOpenMaxCalls)
	breaker.SetStateChangeHook(func(component, key string, state resilience.State) {
		health.RecordBreakerState(component, key, state.String())
	})

	return resilience.Envelope{Policy: policy, Limiter: limiter, Breaker: breaker}
}

func buildPager(cfg *PaginationConfig) pagination.State {
	if cfg == nil {
		return pagination.NewNone(0)
	}
	switch cfg.Type {
	case "offset":
		return pagination.NewOffset(cfg.OffsetParam, cfg.LimitParam, cfg.PageSize, cfg.MaxRecords)
	case "page":
		return pagination.NewPage(cfg.PageParam, cfg.PageSizeParam, cfg.PageSize, cfg.MaxPages, cfg.MaxRecords)
	case "cursor":
		return pagination.NewCursor(cfg.CursorParam, cfg.CursorPath, cfg.MaxRecords)
	default:
		return pagination.NewNone(cfg.MaxRecords)
	}
}

func buildAPIExtractor(b BronzeConfig, base extractors.BaseExtractor, conns *connections.Registry) (extractors.Extractor, error) {
	opts := b.Options
	var watermarkCfg *extractors.WatermarkConfig
	if b.WatermarkColumn != "" {
		watermarkCfg = &extractors.WatermarkConfig{Column: b.WatermarkColumn}
	}

	breakerKey := b.System + "." + b.Entity
	connName := breakerKey
	conns.Declare(connections.Spec{
		Name:            connName,
		Kind:            connections.KindHTTP,
		PoolConnections: opts.PoolConnections,
		PoolMaxSize:     opts.PoolMaxSize,
		TimeoutSeconds:  opts.TimeoutSeconds,
	})
	client, err := conns.HTTPClient(connName)
	if err != nil {
		return nil, err
	}

	envelope := buildEnvelope(string(b.SourceType), breakerKey, opts, b.RateLimitRPS, envRPSVarFor(b.SourceType))
	envelope.Policy.DelayFromException = extractors.RetryAfterDelay

	return &extractors.APIExtractor{
		BaseExtractor: base,
		Config: extractors.APIConfig{
			BaseURL:        opts.BaseURL,
			Endpoint:       opts.Endpoint,
			AuthType:       extractors.AuthType(opts.AuthType),
			AuthTokenEnv:   opts.AuthTokenEnv,
			AuthUserEnv:    opts.AuthUserEnv,
			AuthPassEnv:    opts.AuthPassEnv,
			Headers:        opts.Headers,
			Params:         opts.Params,
			DataPath:       opts.DataPath,
			CursorField:    opts.CursorField,
			Async:          opts.Async,
			MaxConcurrency: opts.MaxConcurrency,
		},
		Client:    client,
		Pager:     buildPager(opts.Pagination),
		Envelope:  envelope,
		Watermark: watermarkCfg,
	}, nil
}

func buildDBExtractor(b BronzeConfig, base extractors.BaseExtractor, conns *connections.Registry) (extractors.Extractor, error) {
	opts := b.Options
	db, err := resolveDBHandle(b, opts, conns)
	if err != nil {
		return nil, err
	}

	var watermarkCfg *extractors.WatermarkConfig
	if b.WatermarkColumn != "" {
		watermarkCfg = &extractors.WatermarkConfig{Column: b.WatermarkColumn, Type: opts.CursorType}
	}

	breakerKey := b.System + "." + b.Entity
	return &extractors.DBExtractor{
		BaseExtractor: base,
		Config: extractors.DBConfig{
			Driver:             string(b.SourceType),
			ConnStrEnv:         opts.ConnStrEnv,
			BaseQuery:          opts.BaseQuery,
			IncrementalEnabled: opts.IncrementalEnabled,
			CursorColumn:       opts.CursorColumn,
			FetchBatchSize:     opts.FetchBatchSize,
		},
		DB:        db,
		Envelope:  buildEnvelope(string(b.SourceType), breakerKey, opts, b.RateLimitRPS, envRPSVarFor(b.SourceType)),
		Watermark: watermarkCfg,
	}, nil
}

func buildDBMultiExtractor(b BronzeConfig, conns *connections.Registry, store *watermark.Store) (extractors.Extractor, error) {
	opts := b.Options
	db, err := resolveDBHandle(b, opts, conns)
	if err != nil {
		return nil, err
	}

	entities := make([]extractors.DBMultiEntitySpec, len(opts.Entities))
	for i, e := range opts.Entities {
		entities[i] = extractors.DBMultiEntitySpec{
			Name:      e.Name,
			Database:  e.Database,
			Schema:    e.Schema,
			Table:     e.Table,
			Query:     e.Query,
			LoadMode:  e.Load.Mode,
			Watermark: e.Load.Watermark,
		}
	}

	workers := opts.ParallelWorkers
	if workers <= 0 {
		workers = 4
	}

	breakerKey := b.System + "." + b.Entity
	return &extractors.DBMultiExtractor{
		System:          b.System,
		DB:              db,
		Entities:        entities,
		ParallelWorkers: workers,
		Store:           store,
		Envelope:        buildEnvelope(string(b.SourceType), breakerKey, opts, b.RateLimitRPS, envRPSVarFor(b.SourceType)),
	}, nil
}

func buildFileExtractor(b BronzeConfig, base extractors.BaseExtractor, duck *sql.DB) (extractors.Extractor, error) {
	opts := b.Options

	recordTypes := make([]extractors.RecordTypeSpec, len(opts.RecordTypes))
	for i, rt := range opts.RecordTypes {
		recordTypes[i] = extractors.RecordTypeSpec{Type: rt.Type, Role: rt.Role, Columns: rt.Columns, Widths: rt.Widths}
	}

	cfg := extractors.FileConfig{
		Format:             extractors.FileFormat(b.SourceType),
		Path:               b.SourcePath,
		Delimiter:          opts.Delimiter,
		Columns:            opts.Columns,
		Widths:             opts.Widths,
		RecordTypePosition: opts.RecordTypePosition,
		RecordTypeLength:   opts.RecordTypeLength,
		RecordTypes:        recordTypes,
		OutputMode:         opts.OutputMode,
	}
	if b.SourceType == SourceFileParquet {
		cfg.DuckDB = duck
	}

	var watermarkCfg *extractors.WatermarkConfig
	if b.WatermarkColumn != "" {
		watermarkCfg = &extractors.WatermarkConfig{Column: b.WatermarkColumn}
	}

	return &extractors.FileExtractor{BaseExtractor: base, Config: cfg, Watermark: watermarkCfg}, nil
}

func resolveDBHandle(b BronzeConfig, opts Options, conns *connections.Registry) (*sql.DB, error) {
	if opts.ConnectionRef != "" {
		return conns.DB(opts.ConnectionRef)
	}
	if opts.ConnStrEnv != "" {
		name := b.System + "." + b.Entity
		conns.Declare(connections.Spec{Name: name, Kind: connections.Kind(b.SourceType), DSN: os.Getenv(opts.ConnStrEnv)})
		return conns.DB(name)
	}
	return nil, pipelineerr.ConfigurationError("pipeline: database source requires connection_ref or conn_str_env")
}
