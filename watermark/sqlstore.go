package watermark

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore persists the same (system, entity) -> cursor mapping in a SQL
// table instead of flat files. Adapted from the teacher's
// CheckpointManager (checkpoint.go), which tracked a single DuckLake
// ledger-sequence row per catalog; generalized here to a full keyspace
// table. Its methods take a context and return errors, so it is not a
// drop-in replacement for Store; the CLI always uses the file-based
// Store, and no setting selects SQLStore.
type SQLStore struct {
	db        *sql.DB
	tableFQN  string // fully-qualified table name, e.g. catalog.schema.table
}

// NewSQLStore creates a SQL-backed store against an already-open
// connection. tableFQN is used verbatim in generated SQL (the caller is
// responsible for ensuring it is a trusted, config-derived identifier —
// never user input).
func NewSQLStore(db *sql.DB, tableFQN string) *SQLStore {
	return &SQLStore{db: db, tableFQN: tableFQN}
}

// Init creates the watermark table if it doesn't exist.
func (s *SQLStore) Init(ctx context.Context) error {
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			system VARCHAR,
			entity VARCHAR,
			last_value VARCHAR,
			updated_at TIMESTAMP
		)
	`, s.tableFQN)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create watermark table: %w", err)
	}
	return nil
}

// Get returns the last cursor for (system, entity), or "", false if absent.
func (s *SQLStore) Get(ctx context.Context, system, entity string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT last_value FROM %s WHERE system = ? AND entity = ?`, s.tableFQN)
	var value string
	err := s.db.QueryRowContext(ctx, query, system, entity).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query watermark: %w", err)
	}
	return value, true, nil
}

// Save upserts the cursor for (system, entity): delete-then-insert, since
// not every embedded SQL engine this store targets (DuckDB included)
// supports a portable UPSERT syntax across the driver set in play.
func (s *SQLStore) Save(ctx context.Context, system, entity, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watermark save: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf(`DELETE FROM %s WHERE system = ? AND entity = ?`, s.tableFQN)
	if _, err := tx.ExecContext(ctx, del, system, entity); err != nil {
		return fmt.Errorf("delete prior watermark: %w", err)
	}

	ins := fmt.Sprintf(`INSERT INTO %s (system, entity, last_value, updated_at) VALUES (?, ?, ?, ?)`, s.tableFQN)
	if _, err := tx.ExecContext(ctx, ins, system, entity, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert watermark: %w", err)
	}

	return tx.Commit()
}
