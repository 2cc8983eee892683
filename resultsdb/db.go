// Package resultsdb stores metric values and summary statistics and reads
// summaries back for comparing runs.
package resultsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/farwydi/sferror"
)

var ErrDialect = errors.New("unsupported results database dialect")

// Dialect selects the schema flavour of a results database.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectClickHouse Dialect = "clickhouse"
)

func (d Dialect) Valid() bool {
	return d == DialectSQLite || d == DialectClickHouse
}

// Options configures the results database connection.
type Options struct {
	// Driver is a database/sql driver name, "sqlite" or "clickhouse".
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// Migrate applies the embedded schema after connecting.
	Migrate bool
	Logger  sferror.Logger
}

const defaultPingTimeout = 5 * time.Second

// DB is a pooled results database connection.
type DB struct {
	*sql.DB
	dialect Dialect
	logger  sferror.Logger
}

// Open initializes a pooled connection using the provided options.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Driver == "" {
		return nil, errors.New("database driver is required")
	}
	if opts.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	dialect := Dialect(opts.Driver)
	if !dialect.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDialect, opts.Driver)
	}

	log := opts.Logger
	if log == nil {
		log = sferror.NopLogger()
	}

	pool, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
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

	if opts.Migrate {
		if err := Migrate(ctx, pool, dialect, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Debugw("results database connected", "driver", opts.Driver)

	return &DB{DB: pool, dialect: dialect, logger: log}, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close releases database resources.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}
