// Package duckdbx opens the shared DuckDB connection every partition
// read/write in this module drives SQL through. Adapted from the
// teacher's duckdb.go (DuckDBClient.initialize), which attached a
// DuckLake catalog over a Postgres-backed metadata store and configured
// an S3 secret for httpfs; here there is no catalog to attach (partitions
// are plain directories of parquet files, not DuckLake tables), so only
// the extension install and optional S3 credential wiring survive,
// generalized to work against any object-store-backed target_path.
package duckdbx

import (
	"context"
	"fmt"
	"os"
	"strings"

	"database/sql"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/withobsrvr/medallion-foundry/logging"
)

var logger = logging.New("duckdbx")

// S3Config mirrors the teacher's AWS* fields from DuckLakeConfig, read
// here from the environment rather than a dedicated YAML block since
// object-store credentials belong outside pipeline definitions.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
}

// S3ConfigFromEnv reads AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY /
// AWS_REGION / AWS_ENDPOINT_URL, returning ok=false if no credentials are
// present (a purely local filesystem run needs no S3 secret at all).
func S3ConfigFromEnv() (S3Config, bool) {
	cfg := S3Config{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:          os.Getenv("AWS_REGION"),
		Endpoint:        os.Getenv("AWS_ENDPOINT_URL"),
	}
	return cfg, cfg.AccessKeyID != "" && cfg.SecretAccessKey != ""
}

// Open returns an in-memory DuckDB handle with httpfs loaded and, if s3
// credentials are supplied, an S3 secret configured so target/source
// paths under s3:// resolve transparently.
func Open(ctx context.Context, s3 *S3Config) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("duckdbx: open: %w", err)
	}

	if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdbx: load httpfs: %w", err)
	}

	if s3 != nil {
		if err := configureS3(ctx, db, *s3); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info().Msg("duckdb connection ready")
	return db, nil
}

func configureS3(ctx context.Context, db *sql.DB, cfg S3Config) error {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	secretSQL := fmt.Sprintf(`
		CREATE SECRET IF NOT EXISTS (
			TYPE S3,
			KEY_ID '%s',
			SECRET '%s',
			REGION '%s',
			ENDPOINT '%s',
			URL_STYLE 'path'
		)
	`, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region, endpoint)

	if _, err := db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("duckdbx: configure s3 secret: %w", err)
	}
	logger.Info().Str("endpoint", endpoint).Msg("s3 secret configured")
	return nil
}
