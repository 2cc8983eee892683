package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maruel/subcommands"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/campaign"
)

func cmdEval() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "eval -db <run.db> [-config <file>] [-ddf]",
		ShortDesc: "evaluates the campaign bundles on one OpSim run and prints the summaries",
		CommandRun: func() subcommands.CommandRun {
			r := &evalRun{}
			r.registerBaseFlags()
			r.Flags.StringVar(&r.db, "db", "", "OpSim database file.")
			r.Flags.StringVar(&r.config, "config", "", "Campaign YAML file, over the built in defaults.")
			r.Flags.BoolVar(&r.ddf, "ddf", false, "Start from the deep drilling field defaults.")
			return r
		},
	}
}

type evalRun struct {
	cmdRun
	db     string
	config string
	ddf    bool
}

func (r *evalRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 || r.db == "" {
		return r.done(usageErr("eval needs -db and no arguments"))
	}

	ctx, cancel, err := r.start()
	if err != nil {
		return r.done(err)
	}
	defer cancel()

	return r.done(r.eval(ctx, os.Stdout))
}

// summarySink keeps the summary rows and drops the per point values.
type summarySink struct {
	mx    sync.Mutex
	stats []sferror.SummaryStat
}

func (s *summarySink) Push(model sferror.DataModel) error {
	if st, ok := model.(*sferror.SummaryStat); ok {
		s.mx.Lock()
		s.stats = append(s.stats, *st)
		s.mx.Unlock()
	}
	return nil
}

func (r *evalRun) eval(ctx context.Context, w io.Writer) error {
	base := campaign.DefaultWFD()
	if r.ddf {
		base = campaign.DefaultDDF()
	}
	cfg := base
	if r.config != "" {
		var err error
		if cfg, err = campaign.Load(r.config, base); err != nil {
			return err
		}
	}

	dir, file := filepath.Split(r.db)
	cfg.DBDir = filepath.Clean(dir)
	run := strings.TrimSuffix(file, filepath.Ext(file))

	sink := &summarySink{}
	runner, err := campaign.NewRunner(cfg, sink, r.log)
	if err != nil {
		return err
	}
	if err := runner.RunOne(ctx, cfg.DBDir, run); err != nil {
		return err
	}
	return printSummaries(w, sink.stats)
}
