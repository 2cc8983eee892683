// Package opsim reads visits and proposals from OpSim simulation databases.
package opsim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/farwydi/sferror"
)

const driverName = "sqlite"

// Table names used by the different OpSim generations.
const (
	TableSummaryAllProps = "SummaryAllProps"
	TableObservations    = "observations"
)

var ErrNoVisitTable = errors.New("no visit table found")

// Options configures the OpSim database connection.
type Options struct {
	Path string
	// Table holding the visits. Detected when empty.
	Table       string
	PingTimeout time.Duration
	Logger      sferror.Logger
}

const defaultPingTimeout = 5 * time.Second

// DB is a read only handle on one OpSim run.
type DB struct {
	*sql.DB
	table   string
	columns map[string]bool
	logger  sferror.Logger
}

// Open connects to the OpSim database at opts.Path.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("opsim database path is required")
	}
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = sferror.NopLogger()
	}

	pool, err := sql.Open(driverName, "file:"+opts.Path+"?mode=ro")
	if err != nil {
		return nil, err
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	db := &DB{DB: pool, table: opts.Table, logger: log}
	if db.table == "" {
		db.table, err = db.detectTable(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s: %w", opts.Path, err)
		}
	}

	db.columns, err = db.tableColumns(ctx, db.table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if len(db.columns) == 0 {
		pool.Close()
		return nil, fmt.Errorf("%s: %w: %s", opts.Path, ErrNoVisitTable, db.table)
	}

	log.Debugw("opsim database opened", "path", opts.Path, "table", db.table)

	return db, nil
}

// Table is the name of the visit table in use.
func (db *DB) Table() string {
	return db.table
}

// Close releases database resources.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

func (db *DB) detectTable(ctx context.Context) (string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		found[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, table := range []string{TableObservations, TableSummaryAllProps} {
		if found[strings.ToLower(table)] {
			return table, nil
		}
	}
	return "", ErrNoVisitTable
}

func (db *DB) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
