package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dlmiddlecote/sqlstats"
	"github.com/go-sql-driver/mysql"
	"github.com/jzelinskie/stringz"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/docsql/internal/querysql"
)

// DefaultTable is the document table used when Config.Table is empty.
const DefaultTable = "documents"

// DefaultConnectTimeout bounds the ping retries of Open.
const DefaultConnectTimeout = 10 * time.Second

// Config describes the database a Store opens.
type Config struct {
	// Driver is "sqlite3" or "mysql". Defaults to "sqlite3".
	Driver string

	// DSN is the driver data source name: a file path (or ":memory:")
	// for sqlite3, user:pass@tcp(host:port)/db for mysql.
	DSN string

	// Table is the document table name. Defaults to DefaultTable.
	Table string

	// MaxOpenConns caps the mysql pool. Ignored for sqlite3, which always
	// uses a single connection.
	MaxOpenConns int

	// ConnectTimeout bounds how long Open retries the initial ping.
	ConnectTimeout time.Duration

	// Registerer, when set, receives a database/sql pool stats collector.
	Registerer prometheus.Registerer

	// Logger receives connection retry warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store provides access to one document table.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
	table   string
}

// Open connects to the configured database and creates the document table
// if it does not exist.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := stringz.DefaultEmpty(cfg.Driver, "sqlite3")
	table := stringz.DefaultEmpty(cfg.Table, DefaultTable)
	if err := querysql.ValidateTable(table); err != nil {
		return nil, err
	}
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := openDB(dialect, cfg)
	if err != nil {
		return nil, err
	}

	if err := ping(ctx, db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, ok := dialect.(querysql.SQLite); ok {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
		db.SetMaxIdleConns(1) // Keep one connection ready

		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	if cfg.Registerer != nil {
		collector := sqlstats.NewStatsCollector("docsql_"+table, db)
		if err := cfg.Registerer.Register(collector); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to register pool stats: %w", err)
		}
	}

	s, err := New(db, dialect, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. The table is not created; call
// EnsureTable for that.
func New(db *sql.DB, dialect querysql.Dialect, table string) (*Store, error) {
	if err := querysql.ValidateTable(table); err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: dialect, table: table}, nil
}

func openDB(dialect querysql.Dialect, cfg Config) (*sql.DB, error) {
	if _, ok := dialect.(querysql.MySQL); !ok {
		// Open database (creates file if doesn't exist)
		db, err := sql.Open(dialect.Name(), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	}

	mysqlCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	// Affected rows must count matched rows, not changed rows
	mysqlCfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// ping verifies the connection, retrying with exponential backoff while the
// server is still starting up.
func ping(ctx context.Context, db *sql.DB, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = cfg.ConnectTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = DefaultConnectTimeout
	}

	return backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			logger.Warn("database not reachable, retrying",
				"error", err,
				"retry_in", next,
			)
		},
	)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// EnsureTable creates the document table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable(s.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the connected engine.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Table returns the document table name.
func (s *Store) Table() string {
	return s.table
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Exec executes a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
