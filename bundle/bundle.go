// Package bundle ties a metric to a slicer and a visit constraint and
// evaluates it over one OpSim run.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/metric"
	"github.com/farwydi/sferror/opsim"
	"github.com/farwydi/sferror/sky"
)

var ErrIncomplete = errors.New("bundle needs a metric and a slicer")

// VisitSource loads the visits matching a constraint.
type VisitSource interface {
	Visits(ctx context.Context, c opsim.Constraint) ([]sferror.Visit, error)
}

// Bundle is one metric evaluated with one slicer on the visits selected by
// Constraint.
type Bundle struct {
	Metric     *metric.SFError
	Slicer     sky.Slicer
	Constraint opsim.Constraint
	Summaries  []metric.Summary
}

func (b *Bundle) Name() string {
	if b.Metric == nil {
		return ""
	}
	return b.Metric.Name()
}

// Result holds the rows produced by one bundle on one run. Slice points
// where the metric could not be evaluated are left out of Values.
type Result struct {
	RunName   string
	Values    []sferror.MetricValue
	Summaries []sferror.SummaryStat
	// Masked counts the slice points with visits but no valid value.
	Masked int
}

// Run evaluates the bundle over the visits of run.
func (b *Bundle) Run(ctx context.Context, src VisitSource, run string) (*Result, error) {
	if b.Metric == nil || b.Slicer == nil {
		return nil, ErrIncomplete
	}

	visits, err := src.Visits(ctx, b.Constraint)
	if err != nil {
		return nil, err
	}

	metric.StackMagErr(visits, b.Metric.Mag())

	ra := make([]float64, len(visits))
	dec := make([]float64, len(visits))
	for i, v := range visits {
		ra[i], dec[i] = v.FieldRA, v.FieldDec
	}

	recordTime := time.Now().UTC()
	constraint := b.Constraint.SQL()
	res := &Result{RunName: run}

	cells := sky.Slice(b.Slicer, sky.NewIndex(ra, dec))
	valid := make([]float64, 0, len(cells))
	subset := make([]sferror.Visit, 0)
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		subset = subset[:0]
		for _, i := range cell.Visits {
			subset = append(subset, visits[i])
		}

		value, ok := b.Metric.Run(subset)
		if !ok {
			res.Masked++
			continue
		}
		valid = append(valid, value)
		res.Values = append(res.Values, sferror.MetricValue{
			RecordTime: recordTime,
			RunName:    run,
			MetricName: b.Metric.Name(),
			SlicerName: b.Slicer.Name(),
			Constraint: constraint,
			SliceID:    int64(cell.ID),
			RA:         cell.RA,
			Dec:        cell.Dec,
			Value:      value,
		})
	}

	for _, s := range b.Summaries {
		value, ok := s.Reduce(valid)
		if !ok {
			continue
		}
		res.Summaries = append(res.Summaries, sferror.SummaryStat{
			RecordTime:  recordTime,
			RunName:     run,
			MetricName:  b.Metric.Name(),
			SlicerName:  b.Slicer.Name(),
			Constraint:  constraint,
			SummaryName: s.Name(),
			Value:       value,
		})
	}

	return res, nil
}

// Group runs several bundles on a run and pushes every row to Sink.
type Group struct {
	Bundles []*Bundle
	Sink    sferror.Sink
	Logger  sferror.Logger
}

// Stats counts the rows a group pushed.
type Stats struct {
	Values    int
	Summaries int
	Masked    int
}

func (s Stats) Add(o Stats) Stats {
	return Stats{Values: s.Values + o.Values, Summaries: s.Summaries + o.Summaries, Masked: s.Masked + o.Masked}
}

func (s Stats) Sub(o Stats) Stats {
	return Stats{Values: s.Values - o.Values, Summaries: s.Summaries - o.Summaries, Masked: s.Masked - o.Masked}
}

// RunAll evaluates every bundle against src. It stops at the first failing
// bundle; rows of earlier bundles are already pushed.
func (g *Group) RunAll(ctx context.Context, src VisitSource, run string) (Stats, error) {
	log := g.Logger
	if log == nil {
		log = sferror.NopLogger()
	}

	var stats Stats
	for _, b := range g.Bundles {
		start := time.Now()
		res, err := b.Run(ctx, src, run)
		if err != nil {
			return stats, fmt.Errorf("%s %s: %w", run, b.Name(), err)
		}

		if g.Sink != nil {
			for i := range res.Values {
				if err := g.Sink.Push(&res.Values[i]); err != nil {
					return stats, fmt.Errorf("%s %s: push value: %w", run, b.Name(), err)
				}
			}
			for i := range res.Summaries {
				if err := g.Sink.Push(&res.Summaries[i]); err != nil {
					return stats, fmt.Errorf("%s %s: push summary: %w", run, b.Name(), err)
				}
			}
		}

		stats.Values += len(res.Values)
		stats.Summaries += len(res.Summaries)
		stats.Masked += res.Masked

		log.Debugw("bundle done",
			"run", run,
			"metric", b.Name(),
			"slicer", b.Slicer.Name(),
			"constraint", b.Constraint.SQL(),
			"values", len(res.Values),
			"masked", res.Masked,
			"elapsed", time.Since(start),
		)
	}
	return stats, nil
}
