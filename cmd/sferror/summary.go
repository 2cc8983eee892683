package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/maruel/subcommands"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/resultsdb"
)

func cmdSummary() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "summary -out <dir> | -dsn <dsn> [-metric M -stat S] [-run R]...",
		ShortDesc: "prints a summary statistic of a metric for every run",
		LongDesc: `Prints a summary statistic of a metric for every run.

Without -metric the stored runs, metrics and their summary statistics are
listed instead.`,
		CommandRun: func() subcommands.CommandRun {
			r := &summaryRun{}
			r.registerBaseFlags()
			r.sink.register(&r.Flags)
			r.Flags.StringVar(&r.out, "out", "", "Output directory of a campaign with sqlite results.")
			r.Flags.StringVar(&r.metric, "metric", "", "Metric name, e.g. SFError_24.15_u.")
			r.Flags.StringVar(&r.stat, "stat", "Median", "Summary statistic name.")
			r.Flags.Var(&r.runs, "run", "Restrict to this run, repeatable.")
			return r
		},
	}
}

type summaryRun struct {
	cmdRun

	sink   sinkFlags
	out    string
	metric string
	stat   string
	runs   stringsFlag
}

func (r *summaryRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		return r.done(usageErr("summary takes no arguments"))
	}

	ctx, cancel, err := r.start()
	if err != nil {
		return r.done(err)
	}
	defer cancel()

	opts, err := r.sink.options(r.out, r.log)
	if err != nil {
		return r.done(err)
	}
	db, err := resultsdb.Open(ctx, opts)
	if err != nil {
		return r.done(err)
	}
	defer db.Close()

	if r.metric == "" {
		return r.done(printCatalog(ctx, os.Stdout, db))
	}

	stats, err := resultsdb.Summaries(ctx, db, resultsdb.Filter{
		Metric:  r.metric,
		Summary: r.stat,
		Runs:    []string(r.runs),
	})
	if err != nil {
		return r.done(err)
	}
	return r.done(printSummaries(os.Stdout, stats))
}

func printSummaries(w io.Writer, stats []sferror.SummaryStat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSLICER\tCONSTRAINT\tSUMMARY\tVALUE")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.RunName, s.SlicerName, s.Constraint, s.SummaryName,
			strconv.FormatFloat(s.Value, 'g', 6, 64))
	}
	return tw.Flush()
}

func printCatalog(ctx context.Context, w io.Writer, db resultsdb.Querier) error {
	runs, err := resultsdb.RunNames(ctx, db)
	if err != nil {
		return err
	}
	metrics, err := resultsdb.MetricNames(ctx, db)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "runs (%d):\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(w, "  %s\n", run)
	}
	fmt.Fprintf(w, "metrics (%d):\n", len(metrics))
	for _, m := range metrics {
		names, err := resultsdb.SummaryNames(ctx, db, m)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s %v\n", m, names)
	}
	return nil
}
