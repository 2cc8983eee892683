package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/bundle"
	"github.com/farwydi/sferror/opsim"
	"github.com/farwydi/sferror/sky"
)

// Report summarizes one version of a campaign.
type Report struct {
	Version string
	Runs    []string
	// Failed holds the runs still failing after the retries.
	Failed []string
	Stats  bundle.Stats
	// Err combines the last error of every failed run.
	Err     error
	Elapsed time.Duration
}

// Runner evaluates a campaign and pushes the rows to a sink.
type Runner struct {
	cfg    Config
	sink   sferror.Sink
	logger sferror.Logger

	// static are the HEALPix bundles, shared by every run.
	static []*bundle.Bundle
	ddf    []BundleConfig

	statsMx sync.Mutex
	stats   bundle.Stats
}

// NewRunner validates cfg and builds every bundle that does not depend on
// the run.
func NewRunner(cfg Config, sink sferror.Sink, logger sferror.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = sferror.NopLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	r := &Runner{cfg: cfg, sink: sink, logger: logger}

	slicers := map[[2]float64]*sky.HealpixSlicer{}
	for _, bc := range cfg.Bundles {
		if bc.DDF {
			r.ddf = append(r.ddf, bc)
			continue
		}

		nside := bc.Nside
		if nside == 0 {
			nside = defaultNside
		}
		key := [2]float64{float64(nside), bc.Radius}
		slicer, ok := slicers[key]
		if !ok {
			var err error
			slicer, err = sky.NewHealpixSlicer(nside, bc.Radius)
			if err != nil {
				return nil, err
			}
			slicers[key] = slicer
		}

		summaries, err := bc.summaries()
		if err != nil {
			return nil, err
		}
		for _, band := range bc.Bands() {
			m, err := bc.newMetric(band)
			if err != nil {
				return nil, err
			}
			r.static = append(r.static, &bundle.Bundle{
				Metric:     m,
				Slicer:     slicer,
				Constraint: bc.constraint(band),
				Summaries:  summaries,
			})
		}
	}
	return r, nil
}

func (r *Runner) Config() Config {
	return r.cfg
}

// Run evaluates every version in turn. It stops early only when ctx is done.
func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(r.cfg.Versions))
	for _, version := range r.cfg.Versions {
		report, err := r.RunVersion(ctx, version)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunVersion evaluates every run of version concurrently, retries the
// failures one at a time and journals the runs that still fail.
func (r *Runner) RunVersion(ctx context.Context, version string) (Report, error) {
	start := time.Now()
	dir := r.cfg.DBDirFor(version)

	runs, err := r.selectRuns(dir)
	if err != nil {
		return Report{}, fmt.Errorf("version %s: %w", version, err)
	}

	r.logger.Infow("version started", "version", version, "dir", dir, "runs", len(runs), "workers", r.cfg.Workers)

	before := r.Stats()
	failures := r.runAll(ctx, dir, runs)

	for attempt := 1; attempt <= r.cfg.Retries && len(failures) > 0 && ctx.Err() == nil; attempt++ {
		retried := make(map[string]error, len(failures))
		for _, run := range runs {
			if _, failed := failures[run]; !failed {
				continue
			}
			r.logger.Infow("retrying run", "version", version, "run", run, "attempt", attempt)
			if err := r.RunOne(ctx, dir, run); err != nil {
				retried[run] = err
			}
		}
		failures = retried
	}

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{Version: version, Runs: runs}
	for _, run := range runs {
		if err, failed := failures[run]; failed {
			report.Failed = append(report.Failed, run)
			report.Err = multierr.Append(report.Err, err)
		}
	}

	if len(report.Failed) > 0 {
		if err := r.journal(version, report.Failed, failures); err != nil {
			return report, err
		}
	}

	report.Stats = r.Stats().Sub(before)
	report.Elapsed = time.Since(start)

	r.logger.Infow("version done",
		"version", version,
		"runs", len(runs),
		"failed", len(report.Failed),
		"values", report.Stats.Values,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// Resume evaluates again the runs journaled for version and drops the ones
// that now succeed from the journal.
func (r *Runner) Resume(ctx context.Context, version string) (Report, error) {
	j, err := r.openJournal(version)
	if err != nil {
		return Report{}, err
	}
	pending, err := j.Pending()
	if err != nil {
		return Report{}, err
	}

	dir := r.cfg.DBDirFor(version)
	report := Report{Version: version, Runs: pending}
	start := time.Now()
	before := r.Stats()
	for _, run := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.RunOne(ctx, dir, run); err != nil {
			report.Failed = append(report.Failed, run)
			report.Err = multierr.Append(report.Err, err)
			continue
		}
		if err := j.Remove(run); err != nil {
			return report, err
		}
	}
	report.Stats = r.Stats().Sub(before)
	report.Elapsed = time.Since(start)
	return report, nil
}

// RunOne evaluates every bundle on a single run of dir.
func (r *Runner) RunOne(ctx context.Context, dir, run string) error {
	db, err := opsim.Open(ctx, opsim.Options{Path: opsim.RunPath(dir, run), Logger: r.logger})
	if err != nil {
		return fmt.Errorf("%s: %w", run, err)
	}
	defer db.Close()

	bundles, err := r.bundlesFor(ctx, db, run)
	if err != nil {
		return fmt.Errorf("%s: %w", run, err)
	}

	g := &bundle.Group{Bundles: bundles, Sink: r.sink, Logger: r.logger}
	stats, err := g.RunAll(ctx, db, run)
	r.addStats(stats)
	return err
}

// Stats is the running total of rows pushed by the runner.
func (r *Runner) Stats() bundle.Stats {
	r.statsMx.Lock()
	defer r.statsMx.Unlock()
	return r.stats
}

func (r *Runner) addStats(s bundle.Stats) {
	r.statsMx.Lock()
	r.stats = r.stats.Add(s)
	r.statsMx.Unlock()
}

func (r *Runner) selectRuns(dir string) ([]string, error) {
	runs, err := opsim.ListRuns(dir)
	if err != nil {
		return nil, err
	}
	if len(r.cfg.Runs) == 0 {
		return runs, nil
	}

	found := make(map[string]bool, len(runs))
	for _, run := range runs {
		found[run] = true
	}
	selected := make([]string, 0, len(r.cfg.Runs))
	for _, run := range r.cfg.Runs {
		if !found[run] {
			r.logger.Warnw("run not found", "dir", dir, "run", run)
			continue
		}
		selected = append(selected, run)
	}
	return selected, nil
}

func (r *Runner) runAll(ctx context.Context, dir string, runs []string) map[string]error {
	var (
		mx       sync.Mutex
		failures = map[string]error{}
	)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for _, run := range runs {
		run := run
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.RunOne(ctx, dir, run); err != nil {
				r.logger.Warnw("run failed", "run", run, "error", err)
				mx.Lock()
				failures[run] = err
				mx.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

func (r *Runner) bundlesFor(ctx context.Context, db *opsim.DB, run string) ([]*bundle.Bundle, error) {
	if len(r.ddf) == 0 {
		return r.static, nil
	}

	names, err := db.DDFNames(ctx)
	if err != nil {
		return nil, err
	}

	bundles := append([]*bundle.Bundle(nil), r.static...)
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		info, err := db.DDFInfo(ctx, name)
		if errors.Is(err, opsim.ErrUnknownDDF) {
			r.logger.Debugw("skipping deep drilling field without coordinates", "run", run, "field", name)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, bc := range r.ddf {
			built, err := ddfBundles(bc, info)
			if err != nil {
				return nil, err
			}
			bundles = append(bundles, built...)
		}
	}

	if len(bundles) == 0 {
		r.logger.Warnw("no deep drilling field in run", "run", run)
	}
	return bundles, nil
}

func ddfBundles(bc BundleConfig, info opsim.DDF) ([]*bundle.Bundle, error) {
	summaries, err := bc.summaries()
	if err != nil {
		return nil, err
	}

	slicer := sky.NewPointsSlicer("UserPointsSlicer_"+info.Name, bc.Radius, sky.Point{RA: info.RA, Dec: info.Dec})

	out := make([]*bundle.Bundle, 0, len(bc.Mags))
	for _, band := range bc.Bands() {
		m, err := bc.newMetric(band)
		if err != nil {
			return nil, err
		}
		c := bc.constraint(band)
		c.ProposalIDs = info.ProposalIDs
		out = append(out, &bundle.Bundle{
			Metric:     m,
			Slicer:     slicer,
			Constraint: c,
			Summaries:  summaries,
		})
	}
	return out, nil
}

func (r *Runner) openJournal(version string) (sferror.Journal, error) {
	path := r.cfg.FailedLogFor(version)
	if path == "" {
		return sferror.NewNullJournal(), nil
	}
	return sferror.NewFileJournal(path, func(run string, reason error) {
		r.logger.Errorw("run failed", "version", version, "run", run, "error", reason)
	})
}

func (r *Runner) journal(version string, failed []string, failures map[string]error) error {
	j, err := r.openJournal(version)
	if err != nil {
		return err
	}
	var errs error
	for _, run := range failed {
		errs = multierr.Append(errs, j.Record(run, failures[run]))
	}
	return errs
}

