// Package extractors implements spec.md 4.5's pluggable Bronze source
// adapters: api, db, db_multi, file (csv/parquet/fixed-width/json/jsonl/
// excel/space-delimited), and custom. Every adapter satisfies the
// Extractor interface; the closed built-in set is registered explicitly
// via RegisterBuiltins (spec design note 9: "avoid implicit
// registration via module-import side effects").
package extractors

import (
	"context"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/logging"
	"github.com/withobsrvr/medallion-foundry/watermark"
)

var logger = logging.New("extractors")

// WatermarkConfig describes the column and type an extractor uses for
// incremental cursors, per spec.md 4.5's get_watermark_config contract.
type WatermarkConfig struct {
	Column string
	Type   string // timestamp|integer|string
}

// FetchResult is the output of one extraction, including the new cursor
// value to persist (if the source is incremental).
type FetchResult struct {
	Records   []curate.Row
	NewCursor string
	HasCursor bool
}

// Extractor is satisfied by every Bronze source adapter.
type Extractor interface {
	FetchRecords(ctx context.Context, runDate string) (FetchResult, error)
	GetWatermarkConfig() *WatermarkConfig
}

// BaseExtractor provides FetchWithWatermark, embeddable by concrete
// extractors that support incremental loads. It consults the watermark
// store and delegates to the embedding extractor's own fetch logic.
// Persisting the resulting cursor is deliberately left to the runner:
// spec.md 5 requires "watermark persistence happens strictly after a
// successful Bronze write with non-zero rows", and only the runner
// observes whether that write actually succeeded.
type BaseExtractor struct {
	System string
	Entity string
	Store  *watermark.Store
}

// FetchWithWatermark runs the supplied fetch function (the concrete
// extractor's own cursor-aware fetch, since Go has no virtual dispatch
// from an embedded struct back into the embedder), threading through the
// prior cursor read from the store.
func (b *BaseExtractor) FetchWithWatermark(ctx context.Context, runDate string, fetch func(ctx context.Context, runDate, priorCursor string) (FetchResult, error)) (FetchResult, error) {
	prior, _ := b.Store.Get(b.System, b.Entity)
	return fetch(ctx, runDate, prior)
}
