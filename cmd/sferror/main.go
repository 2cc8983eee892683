// Command sferror evaluates the structure function error metric over OpSim
// runs and queries the stored results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/maruel/subcommands"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go"
	_ "modernc.org/sqlite"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/resultsdb"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

const defaultClickHouseDSN = "tcp://localhost:9000?database=default&read_timeout=10&write_timeout=20"

var errUsage = errors.New("usage")

func application() *subcommands.DefaultApplication {
	return &subcommands.DefaultApplication{
		Name:  "sferror",
		Title: "Structure function error metric over LSST OpSim cadence runs.",
		Commands: []*subcommands.Command{
			cmdRuns(),
			cmdCampaign("wfd"),
			cmdCampaign("ddf"),
			cmdSummary(),
			cmdFlush(),
			cmdEval(),
			subcommands.CmdHelp,
		},
	}
}

func main() {
	os.Exit(subcommands.Run(application(), os.Args[1:]))
}

// cmdRun holds the flags shared by every subcommand.
type cmdRun struct {
	subcommands.CommandRunBase

	logLevel string
	logDev   bool

	log *zap.SugaredLogger
}

func (r *cmdRun) registerBaseFlags() {
	r.Flags.StringVar(&r.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	r.Flags.BoolVar(&r.logDev, "log-dev", false, "Human readable console logs instead of JSON.")
}

// start builds the logger and a context cancelled on SIGINT or SIGTERM.
func (r *cmdRun) start() (context.Context, context.CancelFunc, error) {
	log, err := sferror.NewLogger(r.logLevel, r.logDev)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: -log-level: %v", errUsage, err)
	}
	r.log = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		_ = r.log.Sync()
	}, nil
}

// done maps an error to the exit code.
func (r *cmdRun) done(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	default:
		if r.log != nil {
			r.log.Errorw("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitFail
	}
}

func usageErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// sinkFlags select the results database.
type sinkFlags struct {
	sink string
	dsn  string
}

func (s *sinkFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.sink, "sink", "sqlite", "Results database: sqlite or clickhouse.")
	fs.StringVar(&s.dsn, "dsn", "", "Results database DSN. Defaults to <out>/results.db for sqlite and a local ClickHouse server.")
}

func (s *sinkFlags) options(out string, log sferror.Logger) (resultsdb.Options, error) {
	opts := resultsdb.Options{Driver: s.sink, DSN: s.dsn, Migrate: true, Logger: log}
	switch resultsdb.Dialect(s.sink) {
	case resultsdb.DialectSQLite:
		if opts.DSN == "" {
			if out == "" {
				return opts, usageErr("-out or -dsn is required")
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return opts, err
			}
			opts.DSN = sqliteDSN(filepath.Join(out, "results.db"))
		}
	case resultsdb.DialectClickHouse:
		if opts.DSN == "" {
			opts.DSN = defaultClickHouseDSN
		}
	default:
		return opts, usageErr("unknown -sink %q", s.sink)
	}
	return opts, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// stringsFlag collects a repeated flag.
type stringsFlag []string

func (s *stringsFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
