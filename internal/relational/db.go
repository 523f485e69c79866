// Package relational provides the SQL query cache of the store.
//
// The database is an embedded SQLite file opened in WAL mode for concurrent
// readers. Every table mirrors one entity collection of the CRDT documents,
// which stay the source of truth; anything here can be rebuilt from them.
//
// Architecture:
//   - Database file: <data_dir>/flequit.db
//   - Tables: derived from the row types in rows.go, see Tables
//   - Supplemental DDL and the migration ledger: see package migrate
//   - Connection lifetime: see ConnectionManager
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// Driver names accepted by Options.Driver.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// Options configures the connection pool.
type Options struct {
	Path   string
	Driver string

	MaxConns int
	MinConns int

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration

	// AcquireTimeout bounds waiting for a pooled connection.
	AcquireTimeout time.Duration

	IdleTimeout time.Duration
	MaxLifetime time.Duration

	Logger *logging.Logger
}

// DefaultOptions returns sensible defaults for a database at path.
func DefaultOptions(path string) Options {
	return Options{
		Path:           path,
		Driver:         DriverSQLite,
		MaxConns:       25,
		MinConns:       5,
		ConnectTimeout: 10 * time.Second,
		AcquireTimeout: 30 * time.Second,
		IdleTimeout:    10 * time.Minute,
		MaxLifetime:    30 * time.Minute,
	}
}

// DB wraps the pooled connection to the query cache.
type DB struct {
	conn *sql.DB
	path string
	opts Options
	log  *logging.Logger
}

// Open creates the database at opts.Path if needed and returns a ready pool.
// The schema is not touched; see migrate.Reconciler.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, storeerr.Newf(storeerr.KindConnection, "open", "database path cannot be empty")
	}
	defaults := DefaultOptions(opts.Path)
	if opts.Driver == "" {
		opts.Driver = defaults.Driver
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaults.MaxConns
	}
	if opts.MinConns < 0 || opts.MinConns > opts.MaxConns {
		opts.MinConns = min(defaults.MinConns, opts.MaxConns)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaults.AcquireTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, storeerr.New(storeerr.KindConnection, "open", fmt.Errorf("failed to create database directory: %w", err))
	}

	dsn, err := dataSourceName(opts)
	if err != nil {
		return nil, storeerr.New(storeerr.KindConnection, "open", err)
	}
	conn, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, storeerr.New(storeerr.KindConnection, "open", fmt.Errorf("failed to open database: %w", err))
	}

	conn.SetMaxOpenConns(opts.MaxConns)
	conn.SetMaxIdleConns(opts.MinConns)
	conn.SetConnMaxLifetime(opts.MaxLifetime)
	conn.SetConnMaxIdleTime(opts.IdleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, storeerr.New(storeerr.KindConnection, "open", fmt.Errorf("failed to ping database: %w", err))
	}

	db := &DB{
		conn: conn,
		path: opts.Path,
		opts: opts,
		log:  opts.Logger.With("relational"),
	}

	// journal_mode is persistent, the per-connection pragmas are in the DSN
	if _, err := conn.ExecContext(pingCtx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, storeerr.New(storeerr.KindConnection, "open", fmt.Errorf("failed to enable WAL mode: %w", err))
	}
	if opts.Driver == DriverLibSQL {
		for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
			if _, err := conn.ExecContext(pingCtx, pragma); err != nil {
				_ = db.Close()
				return nil, storeerr.New(storeerr.KindConnection, "open", fmt.Errorf("failed to apply %s: %w", pragma, err))
			}
		}
	}

	db.log.Debugf("opened %s (%s, max %d conns)", opts.Path, opts.Driver, opts.MaxConns)
	return db, nil
}

func dataSourceName(opts Options) (string, error) {
	switch opts.Driver {
	case DriverSQLite:
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "foreign_keys(1)")
		q.Set("_txlock", "immediate")
		return "file:" + opts.Path + "?" + q.Encode(), nil
	case DriverLibSQL:
		if !libsqlAvailable {
			return "", fmt.Errorf("driver %q is not compiled in (build with -tags libsql)", opts.Driver)
		}
		return "file:" + opts.Path, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", opts.Driver)
	}
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file.
func (db *DB) Path() string {
	return db.path
}

// Stats returns pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.conn.Stats()
}

// Close closes the pool after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Checkpoint WAL before closing
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.log.Warnf("failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withConn runs fn on a pooled connection. Only waiting for the connection is
// bounded by AcquireTimeout; fn runs under ctx.
func (db *DB) withConn(ctx context.Context, op string, fn func(conn *sql.Conn) error) error {
	if db.conn == nil {
		return storeerr.Newf(storeerr.KindConnection, op, "database is closed")
	}

	acquireCtx, cancel := context.WithTimeout(ctx, db.opts.AcquireTimeout)
	conn, err := db.conn.Conn(acquireCtx)
	cancel()
	if err != nil {
		return storeerr.New(storeerr.KindConnection, op, fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	return fn(conn)
}

// withTx runs fn in a transaction on a pooled connection and commits if fn
// returns nil.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return db.withConn(ctx, op, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return translate(op, fmt.Errorf("failed to begin transaction: %w", err))
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return translate(op, fmt.Errorf("failed to commit: %w", err))
		}
		return nil
	})
}

// Exec runs a raw statement, for supplemental DDL.
func (db *DB) Exec(ctx context.Context, query string, args ...any) error {
	return db.withConn(ctx, "exec", func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return translate("exec", err)
		}
		return nil
	})
}

// Tx runs fn in one transaction. Errors returned by fn are passed through.
func (db *DB) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.withTx(ctx, "tx", fn)
}

// TableCounts returns the number of rows of every table in Tables.
func (db *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := db.withConn(ctx, "table_counts", func(conn *sql.Conn) error {
		for _, t := range Tables() {
			var n int64
			if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
				return translateEntity("table_counts", t.Name, "", err)
			}
			counts[t.Name] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
