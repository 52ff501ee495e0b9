// Package connections implements the process-wide named connection
// registry from spec.md 4.4. Connections are declared once in pipeline
// configuration and looked up by name at extraction time; the registry
// holds one *sql.DB or *http.Client per name, constructed lazily and
// cached for the lifetime of the process (spec design note 9:
// "explicit-lifecycle registries" over implicit pooling).
package connections

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/ibmdb/go_ibm_db"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/withobsrvr/medallion-foundry/logging"
)

var logger = logging.New("connections")

// Kind identifies a connection's driver family.
type Kind string

const (
	KindPostgres Kind = "database_postgres"
	KindMySQL    Kind = "database_mysql"
	KindMSSQL    Kind = "database_mssql"
	KindDB2      Kind = "database_db2"
	KindHTTP     Kind = "http"
)

// Spec declares a single named connection, as parsed from pipeline
// configuration. DSN may reference ${VAR}-style env placeholders, which
// are expanded at construction time so credentials never live in the
// YAML file itself.
type Spec struct {
	Name string
	Kind Kind
	DSN  string

	// LegacyPQFallback selects github.com/lib/pq instead of pgx/stdlib
	// for a postgres connection, for DSNs written against older
	// connection-string conventions.
	LegacyPQFallback bool

	// HTTP-specific tuning.
	PoolConnections int
	PoolMaxSize     int
	TimeoutSeconds  int
}

// Registry is a mutex-guarded, process-wide cache of constructed
// connections keyed by name. A single Registry is shared across all
// extractors within one pipeline invocation.
type Registry struct {
	mu    sync.Mutex
	dbs   map[string]*sql.DB
	http  map[string]*http.Client
	specs map[string]Spec
}

func New() *Registry {
	return &Registry{
		dbs:   make(map[string]*sql.DB),
		http:  make(map[string]*http.Client),
		specs: make(map[string]Spec),
	}
}

// Declare registers a connection spec without constructing it. DSN
// placeholders of the form ${VAR} are expanded against the process
// environment at declaration time.
func (r *Registry) Declare(spec Spec) {
	spec.DSN = expandEnv(spec.DSN)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// DB returns the *sql.DB for a declared database connection, opening it
// on first use.
func (r *Registry) DB(name string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.dbs[name]; ok {
		return db, nil
	}
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("connections: no connection declared with name %q", name)
	}

	driver, err := driverFor(spec)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, spec.DSN)
	if err != nil {
		return nil, fmt.Errorf("connections: open %q (%s): %w", name, spec.Kind, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	r.dbs[name] = db
	logger.Info().Str("connection", name).Str("kind", string(spec.Kind)).Msg("opened database connection")
	return db, nil
}

// HTTPClient returns the *http.Client for a declared HTTP connection,
// constructing the underlying transport and pool sizing on first use.
func (r *Registry) HTTPClient(name string) (*http.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.http[name]; ok {
		return c, nil
	}
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("connections: no connection declared with name %q", name)
	}

	poolConns := spec.PoolConnections
	if poolConns <= 0 {
		poolConns = 10
	}
	poolMax := spec.PoolMaxSize
	if poolMax <= 0 {
		poolMax = poolConns
	}
	timeout := time.Duration(spec.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        poolMax,
		MaxIdleConnsPerHost: poolConns,
		MaxConnsPerHost:     poolMax,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{Transport: transport, Timeout: timeout}

	r.http[name] = client
	logger.Info().Str("connection", name).Msg("opened http connection pool")
	return client, nil
}

// Close tears down every connection the registry has opened. Intended
// to run once, at process shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, db := range r.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("connections: close %q: %w", name, err)
		}
	}
	for _, c := range r.http {
		c.CloseIdleConnections()
	}
	return firstErr
}

func driverFor(spec Spec) (string, error) {
	switch spec.Kind {
	case KindPostgres:
		if spec.LegacyPQFallback {
			return "postgres", nil
		}
		return "pgx", nil
	case KindMySQL:
		return "mysql", nil
	case KindMSSQL:
		return "sqlserver", nil
	case KindDB2:
		return "go_ibm_db", nil
	default:
		return "", fmt.Errorf("connections: unsupported database kind %q", spec.Kind)
	}
}

// expandEnv resolves ${VAR} placeholders against the process
// environment, leaving unset variables as an empty string rather than
// failing — absence is caught later by connection errors, which carry
// more useful context than a missing-env-var error would.
func expandEnv(dsn string) string {
	if !strings.Contains(dsn, "${") {
		return dsn
	}
	return os.Expand(dsn, os.Getenv)
}
