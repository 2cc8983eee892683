package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/campaign"
	"github.com/farwydi/sferror/resultsdb"
	"github.com/farwydi/sferror/sender"
)

func cmdCampaign(kind string) *subcommands.Command {
	short := "runs the wide fast deep campaign"
	if kind == "ddf" {
		short = "runs the deep drilling field campaign"
	}
	return &subcommands.Command{
		UsageLine: kind + " -out <dir> [-config <file>] [-version V]...",
		ShortDesc: short,
		LongDesc: short + ` over every OpSim run of each FBS version.

Rows are queued under <out>/queue and published to the results database.
Runs still failing after the retries are appended to the failed run log.`,
		CommandRun: func() subcommands.CommandRun {
			r := &campaignRun{kind: kind}
			r.registerBaseFlags()
			r.sink.register(&r.Flags)
			r.Flags.StringVar(&r.config, "config", "", "Campaign YAML file, over the built in defaults.")
			r.Flags.StringVar(&r.out, "out", "", "Output directory for the queue and the sqlite results.")
			r.Flags.StringVar(&r.dbDir, "db-dir", "", "OpSim directory template, {version} is substituted.")
			r.Flags.IntVar(&r.workers, "workers", 0, "Concurrent runs, overrides the config.")
			r.Flags.Var(&r.versions, "version", "FBS version to run, repeatable. Overrides the config.")
			r.Flags.Var(&r.runs, "run", "Only evaluate this run, repeatable.")
			r.Flags.BoolVar(&r.resume, "resume", false, "Only evaluate the runs of the failed run log.")
			r.Flags.DurationVar(&r.sendInterval, "send-interval", time.Second, "Pause between two publications.")
			return r
		},
	}
}

type campaignRun struct {
	cmdRun
	kind string

	sink         sinkFlags
	config       string
	out          string
	dbDir        string
	workers      int
	versions     stringsFlag
	runs         stringsFlag
	resume       bool
	sendInterval time.Duration
}

func (r *campaignRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		return r.done(usageErr("%s takes no arguments", r.kind))
	}
	if r.out == "" {
		return r.done(usageErr("-out is required"))
	}

	ctx, cancel, err := r.start()
	if err != nil {
		return r.done(err)
	}
	defer cancel()

	return r.done(r.run(ctx, os.Stdout))
}

func (r *campaignRun) loadConfig() (campaign.Config, error) {
	base := campaign.DefaultWFD()
	if r.kind == "ddf" {
		base = campaign.DefaultDDF()
	}

	cfg := base
	if r.config != "" {
		var err error
		if cfg, err = campaign.Load(r.config, base); err != nil {
			return cfg, err
		}
	}
	if r.dbDir != "" {
		cfg.DBDir = r.dbDir
	}
	if r.workers > 0 {
		cfg.Workers = r.workers
	}
	if len(r.versions) > 0 {
		cfg.Versions = []string(r.versions)
	}
	if len(r.runs) > 0 {
		cfg.Runs = []string(r.runs)
	}
	return cfg, cfg.Validate()
}

func (r *campaignRun) run(ctx context.Context, w io.Writer) (err error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	opts, err := r.sink.options(r.out, r.log)
	if err != nil {
		return err
	}
	db, err := resultsdb.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("results database: %w", err)
	}
	defer db.Close()

	s, err := openSender(db, r.out, r.sendInterval, r.log)
	if err != nil {
		return err
	}
	s.RunPusher(ctx)
	defer func() {
		if stopErr := s.Stop(ctx.Err() == nil); stopErr != nil && err == nil {
			err = stopErr
		}
		r.log.Infow("sender stopped", "sent", s.Sent())
	}()

	runner, err := campaign.NewRunner(cfg, s, r.log)
	if err != nil {
		return err
	}

	var failed int
	for _, version := range cfg.Versions {
		var report campaign.Report
		if r.resume {
			report, err = runner.Resume(ctx, version)
		} else {
			report, err = runner.RunVersion(ctx, version)
		}
		if err != nil {
			return err
		}
		printReport(w, report)
		failed += len(report.Failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d runs failed", failed)
	}
	return nil
}

func openSender(db *resultsdb.DB, out string, interval time.Duration, log sferror.Logger) (*sender.Sender, error) {
	workspace := filepath.Join(out, "queue")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, err
	}

	s := sender.NewSender(db.DB, sender.Config{
		Logger:            log,
		SendInterval:      interval,
		SendLimit:         sender.ConfigDefault.SendLimit,
		UseMemoryFallback: true,
		FileWorkspace:     workspace,
		MaxCorruptedFiles: sender.ConfigDefault.MaxCorruptedFiles,
	})
	if err := s.Open(&sferror.MetricValue{}, &sferror.SummaryStat{}); err != nil {
		_ = s.Stop(false)
		return nil, err
	}
	return s, nil
}

func printReport(w io.Writer, report campaign.Report) {
	fmt.Fprintf(w, "FBS v%s: %s runs, %s failed, %s values, %s summaries in %s\n",
		report.Version,
		humanize.Comma(int64(len(report.Runs))),
		humanize.Comma(int64(len(report.Failed))),
		humanize.Comma(int64(report.Stats.Values)),
		humanize.Comma(int64(report.Stats.Summaries)),
		report.Elapsed.Round(time.Millisecond),
	)
	for _, run := range report.Failed {
		fmt.Fprintf(w, "  failed: %s\n", run)
	}
}
