package resultsdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/farwydi/sferror"
)

//go:embed migrations
var migrations embed.FS

// MigrationsFS exposes the schema files of one dialect.
func MigrationsFS(dialect Dialect) (fs.FS, error) {
	if !dialect.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDialect, dialect)
	}
	return fs.Sub(migrations, path.Join("migrations", string(dialect)))
}

// Migrator executes .sql migration files against a database connection.
type Migrator struct {
	Logger sferror.Logger
	DB     *sql.DB
	FS     fs.FS
}

// Migrate applies the embedded schema of dialect to db.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger sferror.Logger) error {
	f, err := MigrationsFS(dialect)
	if err != nil {
		return err
	}
	return (&Migrator{DB: db, FS: f, Logger: logger}).Up(ctx)
}

// Up executes all *.up.sql files in lexical order. Statements are
// idempotent so a schema is applied on every start.
func (m *Migrator) Up(ctx context.Context) error {
	if m == nil {
		return errors.New("migrator is nil")
	}
	if m.DB == nil {
		return errors.New("migrator requires a database handle")
	}
	if m.FS == nil {
		return errors.New("migrator requires a filesystem")
	}

	logger := m.Logger
	if logger == nil {
		logger = sferror.NopLogger()
	}

	entries, err := fs.ReadDir(m.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		contents, err := fs.ReadFile(m.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		for i, stmt := range splitSQLStatements(string(contents)) {
			if _, err := m.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %s [%d]: %w", name, i+1, err)
			}
		}
		applied++
		logger.Debugw("migration applied", "file", name)
	}

	if applied == 0 {
		logger.Warnw("no migrations to run")
	}
	return nil
}

func splitSQLStatements(sqlText string) []string {
	raw := strings.Split(sqlText, ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		trimmed := strings.TrimSpace(stmt)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
