package resultsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/farwydi/sferror"
)

var ErrUnknownRun = errors.New("run names do not match the results")

// Querier is satisfied by *sql.DB and *DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Filter selects summary statistics.
type Filter struct {
	Metric  string
	Summary string
	// Runs restricts the result, every run when empty.
	Runs []string
}

type statKey struct {
	run, metric, slicer, constraint, summary string
}

// Summaries returns one summary statistic of a metric for every matching
// run, ordered by run. A run evaluated several times reports its latest
// value per slicer and constraint; of rows recorded at the same instant the
// last one read wins.
func Summaries(ctx context.Context, db Querier, f Filter) ([]sferror.SummaryStat, error) {
	if len(f.Runs) > 0 {
		known, err := RunNames(ctx, db)
		if err != nil {
			return nil, err
		}
		if missing := difference(f.Runs, known); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRun, strings.Join(missing, ", "))
		}
	}

	query := `SELECT record_time, run_name, metric_name, slicer_name, sql_constraint, summary_name, value
FROM summary_stats WHERE metric_name = ? AND summary_name = ?`
	args := []interface{}{f.Metric, f.Summary}
	if len(f.Runs) > 0 {
		query += ` AND run_name IN (?` + strings.Repeat(", ?", len(f.Runs)-1) + `)`
		for _, run := range f.Runs {
			args = append(args, run)
		}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	latest := map[statKey]int{}
	var stats []sferror.SummaryStat
	for rows.Next() {
		var s sferror.SummaryStat
		if err := rows.Scan(&s.RecordTime, &s.RunName, &s.MetricName, &s.SlicerName, &s.Constraint, &s.SummaryName, &s.Value); err != nil {
			return nil, err
		}
		key := statKey{s.RunName, s.MetricName, s.SlicerName, s.Constraint, s.SummaryName}
		if i, ok := latest[key]; ok {
			if !s.RecordTime.Before(stats[i].RecordTime) {
				stats[i] = s
			}
			continue
		}
		latest[key] = len(stats)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.RunName != b.RunName {
			return a.RunName < b.RunName
		}
		if a.SlicerName != b.SlicerName {
			return a.SlicerName < b.SlicerName
		}
		return a.Constraint < b.Constraint
	})
	return stats, nil
}

type valueKey struct {
	slicer, constraint string
	slice              int64
}

// Values returns the per slice values of metric on run, ordered by slicer,
// constraint and slice. A retried or resumed run stores its values again, so
// only the latest row per slice is kept, as Summaries does.
func Values(ctx context.Context, db Querier, run, metric string) ([]sferror.MetricValue, error) {
	rows, err := db.QueryContext(ctx, `SELECT record_time, run_name, metric_name, slicer_name, sql_constraint, slice_id, ra_deg, dec_deg, value
FROM metric_values WHERE run_name = ? AND metric_name = ?`, run, metric)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	latest := map[valueKey]int{}
	var values []sferror.MetricValue
	for rows.Next() {
		var v sferror.MetricValue
		if err := rows.Scan(&v.RecordTime, &v.RunName, &v.MetricName, &v.SlicerName, &v.Constraint, &v.SliceID, &v.RA, &v.Dec, &v.Value); err != nil {
			return nil, err
		}
		key := valueKey{v.SlicerName, v.Constraint, v.SliceID}
		if i, ok := latest[key]; ok {
			if !v.RecordTime.Before(values[i].RecordTime) {
				values[i] = v
			}
			continue
		}
		latest[key] = len(values)
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.SlicerName != b.SlicerName {
			return a.SlicerName < b.SlicerName
		}
		if a.Constraint != b.Constraint {
			return a.Constraint < b.Constraint
		}
		return a.SliceID < b.SliceID
	})
	return values, nil
}

// RunNames lists the runs with at least one stored row.
func RunNames(ctx context.Context, db Querier) ([]string, error) {
	return distinct(ctx, db, "run_name", "")
}

// MetricNames lists the metrics with at least one stored row.
func MetricNames(ctx context.Context, db Querier) ([]string, error) {
	return distinct(ctx, db, "metric_name", "")
}

// SummaryNames lists the summary statistics computed for metric.
func SummaryNames(ctx context.Context, db Querier, metric string) ([]string, error) {
	return distinctIn(ctx, db, "summary_stats", "summary_name", metric)
}

func distinct(ctx context.Context, db Querier, column, metric string) ([]string, error) {
	seen := map[string]bool{}
	for _, table := range []string{"metric_values", "summary_stats"} {
		names, err := distinctIn(ctx, db, table, column, metric)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			seen[name] = true
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func distinctIn(ctx context.Context, db Querier, table, column, metric string) ([]string, error) {
	query := `SELECT DISTINCT ` + column + ` FROM ` + table
	var args []interface{}
	if metric != "" {
		query += ` WHERE metric_name = ?`
		args = append(args, metric)
	}
	query += ` ORDER BY ` + column

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func difference(want, have []string) []string {
	known := make(map[string]bool, len(have))
	for _, name := range have {
		known[name] = true
	}
	var missing []string
	for _, name := range want {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
